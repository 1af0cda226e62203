package nlu

import "context"

// Offline is the degraded collaborator set used when no model API key is
// configured. Classification always falls back to a general query and
// replies are canned, so the rest of the system keeps working.
type Offline struct{}

const offlineReply = "المساعد الذكي غير متاح حالياً. يمكنك إدارة مشاريعك ومهامك يدوياً."

func (Offline) Classify(_ context.Context, text string) Intent {
	return Fallback(text)
}

func (Offline) GenerateTasks(_ context.Context, _ Intent, _ string) []TaskDraft {
	return nil
}

func (Offline) GenerateReply(_ context.Context, _ string, _ *ReplyContext) (string, error) {
	return offlineReply, nil
}
