package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

type findingKey struct {
	objectID    int64
	findingType domain.FindingType
	lineNumber  int
	columnStart int
	valueHash   string
}

// Store keeps jobs, objects and findings in process memory with the same
// transition guards and aggregate recomputation as the Postgres store.
type Store struct {
	mu           sync.Mutex
	jobs         map[string]*domain.Job
	objects      map[int64]*domain.JobObject
	findings     map[int64][]domain.Finding // by object id
	seen         map[findingKey]struct{}
	touched      map[int64]time.Time // last transition per object, like updated_at
	nextObjectID int64
	nextFinding  int64
}

func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*domain.Job),
		objects:  make(map[int64]*domain.JobObject),
		findings: make(map[int64][]domain.Finding),
		seen:     make(map[findingKey]struct{}),
		touched:  make(map[int64]time.Time),
	}
}

// --- JobRepository ---

func (s *Store) CreateJobWithObjects(_ context.Context, job domain.Job, objects []ports.ObjectSpec) (domain.Job, []domain.JobObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return domain.Job{}, nil, fmt.Errorf("job %s already exists", job.ID)
	}
	now := time.Now().UTC()
	job.Status = domain.JobPending
	job.TotalObjects = len(objects)
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = &job

	rows := make([]domain.JobObject, 0, len(objects))
	keys := make(map[string]struct{}, len(objects))
	for _, spec := range objects {
		if _, dup := keys[spec.Key]; dup {
			return domain.Job{}, nil, fmt.Errorf("duplicate object key %q in job %s", spec.Key, job.ID)
		}
		keys[spec.Key] = struct{}{}
		s.nextObjectID++
		obj := domain.JobObject{
			ID:        s.nextObjectID,
			JobID:     job.ID,
			Key:       spec.Key,
			SizeBytes: spec.SizeBytes,
			Status:    domain.ObjectPending,
			CreatedAt: now,
		}
		s.objects[obj.ID] = &obj
		s.touched[obj.ID] = now
		rows = append(rows, obj)
	}
	return job, rows, nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (domain.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, false, nil
	}
	return *j, true, nil
}

func (s *Store) CancelJob(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	j.Status = domain.JobCancelled
	j.UpdatedAt = time.Now().UTC()
	return true, nil
}

// --- ObjectRepository ---

func (s *Store) GetObject(_ context.Context, objectID int64) (domain.JobObject, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[objectID]
	if !ok {
		return domain.JobObject{}, false, nil
	}
	return *o, true, nil
}

func (s *Store) MarkScanning(_ context.Context, objectID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[objectID]
	if !ok {
		return false, nil
	}
	if o.Status != domain.ObjectPending && o.Status != domain.ObjectScanning {
		return false, nil
	}
	o.Status = domain.ObjectScanning
	o.Attempts++
	s.touched[o.ID] = time.Now().UTC()
	s.recomputeLocked(o.JobID)
	return true, nil
}

func (s *Store) MarkCompleted(_ context.Context, objectID int64) (bool, error) {
	return s.finishObject(objectID, domain.ObjectCompleted, "", domain.ObjectScanning)
}

func (s *Store) MarkFailed(_ context.Context, objectID int64, reason string) (bool, error) {
	return s.finishObject(objectID, domain.ObjectFailed, reason, domain.ObjectPending, domain.ObjectScanning)
}

func (s *Store) MarkSkipped(_ context.Context, objectID int64, reason string) (bool, error) {
	return s.finishObject(objectID, domain.ObjectSkipped, reason, domain.ObjectPending, domain.ObjectScanning)
}

func (s *Store) finishObject(objectID int64, to domain.ObjectStatus, reason string, from ...domain.ObjectStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[objectID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if o.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	now := time.Now().UTC()
	o.Status = to
	o.ErrorMessage = reason
	o.ScannedAt = &now
	s.touched[o.ID] = now
	s.recomputeLocked(o.JobID)
	return true, nil
}

func (s *Store) FailStuckScanning(_ context.Context, olderThan time.Duration, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	swept := 0
	jobs := make(map[string]struct{})
	for _, o := range s.objects {
		if o.Status != domain.ObjectScanning {
			continue
		}
		// Sweep on the last transition time, matching updated_at in the
		// Postgres store: a freshly claimed scan is never stuck.
		if s.touched[o.ID].After(cutoff) {
			continue
		}
		now := time.Now().UTC()
		o.Status = domain.ObjectFailed
		o.ErrorMessage = reason
		o.ScannedAt = &now
		s.touched[o.ID] = now
		jobs[o.JobID] = struct{}{}
		swept++
	}
	for jobID := range jobs {
		s.recomputeLocked(jobID)
	}
	return swept, nil
}

// --- FindingRepository ---

func (s *Store) InsertFindings(_ context.Context, rows []domain.Finding) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	jobs := make(map[string]struct{})
	for _, f := range rows {
		key := findingKey{f.ObjectID, f.Type, f.LineNumber, f.ColumnStart, f.ValueHash}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.nextFinding++
		f.ID = s.nextFinding
		s.findings[f.ObjectID] = append(s.findings[f.ObjectID], f)
		if o, ok := s.objects[f.ObjectID]; ok {
			o.FindingsCount = len(s.findings[f.ObjectID])
		}
		jobs[f.JobID] = struct{}{}
		inserted++
	}
	for jobID := range jobs {
		s.recomputeLocked(jobID)
	}
	return inserted, nil
}

func (s *Store) CountFindingsByJob(_ context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countFindingsLocked(jobID), nil
}

func (s *Store) ListFindingsByObject(_ context.Context, objectID int64) ([]domain.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Finding, len(s.findings[objectID]))
	copy(out, s.findings[objectID])
	return out, nil
}

func (s *Store) countFindingsLocked(jobID string) int {
	n := 0
	for _, o := range s.objects {
		if o.JobID == jobID {
			n += len(s.findings[o.ID])
		}
	}
	return n
}

// recomputeLocked rebuilds the job's derived counters from the live child
// rows and advances the job status. Counters are never incremented in
// place; recomputation from children is what keeps them drift-free under
// redelivery. Cancelled jobs still get their counters refreshed (an
// in-flight scan may settle after the cancel), but never change status.
func (s *Store) recomputeLocked(jobID string) {
	j, ok := s.jobs[jobID]
	if !ok {
		return
	}
	var completed, failed, open int
	for _, o := range s.objects {
		if o.JobID != jobID {
			continue
		}
		switch o.Status {
		case domain.ObjectCompleted:
			completed++
		case domain.ObjectFailed:
			failed++
		case domain.ObjectPending, domain.ObjectScanning:
			open++
		}
	}
	j.CompletedObjects = completed
	j.FailedObjects = failed
	j.TotalFindings = s.countFindingsLocked(jobID)
	j.UpdatedAt = time.Now().UTC()

	if j.Status == domain.JobCancelled {
		return
	}
	if open == 0 {
		if j.Status != domain.JobCompleted {
			now := time.Now().UTC()
			j.Status = domain.JobCompleted
			j.CompletedAt = &now
		}
	} else if j.Status == domain.JobPending {
		j.Status = domain.JobRunning
	}
}
