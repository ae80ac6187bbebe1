package quota

import (
	"context"
	"sync"
	"time"

	"github.com/SecuShare/filevault/internal/models"
)

type staticDefaults map[string]string

func (s staticDefaults) GetAllMap(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

type staticOverrides map[string]models.LimitOverrides

func (s staticOverrides) GetLimitOverrides(_ context.Context, userID string) (models.LimitOverrides, error) {
	return s[userID], nil
}

type fakeFile struct {
	size      int64
	createdAt time.Time
}

type fakeUsage struct {
	mu    sync.Mutex
	files []fakeFile
	links int64
	err   error
}

func (f *fakeUsage) addFile(sizeBytes int64, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, fakeFile{size: sizeBytes, createdAt: createdAt})
}

func (f *fakeUsage) CountFiles(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.files)), f.err
}

func (f *fakeUsage) CountShortLinks(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links, f.err
}

func (f *fakeUsage) SumFileBytes(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, file := range f.files {
		total += file.size
	}
	return total, f.err
}

func (f *fakeUsage) SumFileBytesCreatedBetween(_ context.Context, _ string, from, to time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, file := range f.files {
		if !file.createdAt.Before(from) && !file.createdAt.After(to) {
			total += file.size
		}
	}
	return total, f.err
}

type notification struct {
	userID    string
	limitName string
	details   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (r *recordingNotifier) Notify(userID, limitName, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notification{userID: userID, limitName: limitName, details: details})
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func int64Ptr(v int64) *int64 {
	return &v
}
