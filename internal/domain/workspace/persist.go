package workspace

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Storage keys shared with earlier browser-local versions of the editor.
const (
	FilesKey  = "live-editor-files"
	ActiveKey = "live-editor-active-files"
)

var codec = sonic.ConfigStd

// EncodeBuffers serializes the buffer list in persisted form
func EncodeBuffers(buffers []types.Buffer) ([]byte, error) {
	if buffers == nil {
		buffers = []types.Buffer{}
	}
	return codec.Marshal(buffers)
}

// DecodeBuffers parses the persisted buffer list
func DecodeBuffers(data []byte) ([]types.Buffer, error) {
	var buffers []types.Buffer
	if err := codec.Unmarshal(data, &buffers); err != nil {
		return nil, fmt.Errorf("decode buffers: %w", err)
	}
	return buffers, nil
}

// EncodeSelection serializes the active selection
func EncodeSelection(sel types.Selection) ([]byte, error) {
	return codec.Marshal(sel)
}

// DecodeSelection parses the persisted active selection
func DecodeSelection(data []byte) (types.Selection, error) {
	var sel types.Selection
	if err := codec.Unmarshal(data, &sel); err != nil {
		return types.Selection{}, fmt.Errorf("decode selection: %w", err)
	}
	return sel, nil
}

// load reads both keys. A missing selection is not an error.
func (s *Store) load(ctx context.Context) ([]types.Buffer, types.Selection, error) {
	var sel types.Selection
	if s.kv == nil {
		return nil, sel, nil
	}

	data, ok, err := s.kv.Get(ctx, FilesKey)
	if err != nil {
		return nil, sel, fmt.Errorf("read %s: %w", FilesKey, err)
	}
	if !ok {
		return nil, sel, nil
	}
	buffers, err := DecodeBuffers(data)
	if err != nil {
		return nil, sel, err
	}

	data, ok, err = s.kv.Get(ctx, ActiveKey)
	if err != nil {
		s.log.Warn("active selection unreadable", zap.Error(err))
		return buffers, sel, nil
	}
	if ok {
		if sel, err = DecodeSelection(data); err != nil {
			s.log.Warn("active selection corrupt", zap.Error(err))
			sel = types.Selection{}
		}
	}
	return buffers, sel, nil
}

// persistLocked writes both keys. Failures are logged; memory stays
// authoritative. Caller holds mu.
func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	timer := monitoring.NewTimer(s.metrics, "workspace", "persist")

	if err := s.writeLocked(ctx); err != nil {
		timer.Stop("error")
		s.metrics.IncPersistErrors()
		s.log.Warn("persist failed", zap.Error(err))
		return
	}
	timer.Stop("success")
}

func (s *Store) writeLocked(ctx context.Context) error {
	files, err := EncodeBuffers(s.buffers)
	if err != nil {
		return err
	}
	active, err := EncodeSelection(s.active)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, FilesKey, files); err != nil {
		return fmt.Errorf("write %s: %w", FilesKey, err)
	}
	if err := s.kv.Set(ctx, ActiveKey, active); err != nil {
		return fmt.Errorf("write %s: %w", ActiveKey, err)
	}
	return nil
}
