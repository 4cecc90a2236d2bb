package main

import (
	"backdrop/internal/backdrop"
	"backdrop/internal/config"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type BackdropService struct {
	orchestrator   *backdrop.Orchestrator
	states         *backdrop.StateRepository
	settings       config.Settings
	logger         *slog.Logger
	mu             sync.Mutex
	lastHistoryKey string
}

func NewBackdropService(
	orchestrator *backdrop.Orchestrator,
	states *backdrop.StateRepository,
	settings config.Settings,
	logger *slog.Logger,
) *BackdropService {
	return &BackdropService{
		orchestrator: orchestrator,
		states:       states,
		settings:     settings,
		logger:       logger,
	}
}

func (s *BackdropService) GetState() backdrop.State {
	return s.orchestrator.GetState()
}

func (s *BackdropService) GetSettings() config.Settings {
	return s.settings
}

func (s *BackdropService) SwapBackdrop(url string, backdropType int) (backdrop.State, error) {
	return s.orchestrator.SwapBackdrop(url, backdropType)
}

// HandleData accepts the raw settings event sent by the content view.
func (s *BackdropService) HandleData(payload string) (backdrop.State, error) {
	event, err := backdrop.ParseEvent([]byte(payload))
	if err != nil {
		return s.orchestrator.GetState(), err
	}

	return s.orchestrator.HandleEvent(event)
}

func (s *BackdropService) Reload() (backdrop.State, error) {
	return s.orchestrator.Reload()
}

func (s *BackdropService) ListHistory(limit int) ([]backdrop.HistoryEntry, error) {
	return s.states.ListHistory(context.Background(), limit)
}

func (s *BackdropService) restore(ctx context.Context) {
	snapshot, ok, err := s.states.Load(ctx)
	if err != nil {
		s.logger.Warn("restore backdrop failed", "error", err)
		return
	}
	if !ok {
		return
	}

	if _, err := s.orchestrator.SwapBackdrop(snapshot.URL, snapshot.Type); err != nil {
		s.logger.Warn("restore backdrop failed", "url", snapshot.URL, "error", err)
		return
	}
	s.logger.Info("restored backdrop", "url", snapshot.URL, "type", snapshot.Type)
}

// recordState persists states that are settled: either hidden, or with the
// requested url on screen.
func (s *BackdropService) recordState(state backdrop.State) {
	if state.URL == "" {
		return
	}

	active, hasActive := state.ActiveSlot()
	settled := state.URL == backdrop.URLNone || (hasActive && active.Loaded && active.URL == state.URL)
	if !settled {
		return
	}

	ctx := context.Background()
	if err := s.states.Save(ctx, backdrop.SnapshotFromState(state)); err != nil {
		s.logger.Warn("save backdrop state failed", "error", err)
	}

	if !hasActive {
		return
	}

	historyKey := fmt.Sprintf("%s|%d", state.URL, state.Type)
	s.mu.Lock()
	if historyKey == s.lastHistoryKey {
		s.mu.Unlock()
		return
	}
	s.lastHistoryKey = historyKey
	s.mu.Unlock()

	if err := s.states.AppendHistory(ctx, backdrop.HistoryEntry{
		URL:          state.URL,
		Type:         state.Type,
		Background:   active.Background,
		UsedFallback: active.UsedFallback,
	}); err != nil {
		s.logger.Warn("record backdrop history failed", "error", err)
	}
}
