package marker

import (
	"context"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loov.dev/profileview/profile"
)

// ProfileMarkers are the derived markers of every thread of a profile.
type ProfileMarkers struct {
	IPC     *IPCMarkerCorrelations
	Threads []*DerivedMarkers
}

// DeriveProfile correlates IPC markers once and derives every thread.
// Threads are independent, so they are derived concurrently.
func DeriveProfile(ctx context.Context, p *profile.Profile, log *zap.Logger) (*ProfileMarkers, error) {
	if log == nil {
		log = zap.NewNop()
	}

	ipc, err := CorrelateIPCMarkers(p.Threads, p.Strings, log)
	if err != nil {
		return nil, err
	}

	result := &ProfileMarkers{
		IPC:     ipc,
		Threads: make([]*DerivedMarkers, len(p.Threads)),
	}

	group, ctx := errgroup.WithContext(ctx)
	for i, thread := range p.Threads {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			derived, err := DeriveMarkers(&thread.Markers, p.Strings, thread.TID, thread.TimeRange(), ipc)
			if err != nil {
				return errs.Errorf("thread %d %q: %w", i, thread.Name, err)
			}
			result.Threads[i] = derived
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	log.Debug("derived markers",
		zap.Int("threads", len(p.Threads)),
		zap.Int("ipc", ipc.Len()))
	return result, nil
}

// Markers returns the resolved markers of every thread, indexed like the
// profile threads.
func (pm *ProfileMarkers) Markers() [][]Marker {
	markers := make([][]Marker, len(pm.Threads))
	for i, derived := range pm.Threads {
		markers[i] = derived.Markers
	}
	return markers
}
