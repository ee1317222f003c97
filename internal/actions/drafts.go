package actions

import (
	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/model"
)

// SaveDraft keeps unsent composer text for ref. An empty body removes it.
func (a *Actions) SaveDraft(ref model.PeerRef, body string) error {
	if a.local == nil {
		return nil
	}
	return a.local.SaveDraft(string(ref.Kind), ref.ID, body)
}

// Draft returns the saved composer text for ref.
func (a *Actions) Draft(ref model.PeerRef) (string, error) {
	if a.local == nil {
		return "", nil
	}
	d, err := a.local.GetDraft(string(ref.Kind), ref.ID)
	if err != nil || d == nil {
		return "", err
	}
	return d.Body, nil
}

func (a *Actions) clearDraft(ref model.PeerRef) {
	if err := a.SaveDraft(ref, ""); err != nil {
		a.logger.Warn("clear draft", zap.Stringer("peer", ref), zap.Error(err))
	}
}
