package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const (
	ReviewStatusPending = "pending"

	reviewFilePrefix = "review_"
	reviewFileSuffix = ".json"
)

var (
	ErrReviewQueue = errors.New("review queue error")

	unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

// Review is one borderline verdict awaiting manual adjudication. Status is changed out of band
type Review struct {
	ID           string           `json:"id"`
	Timestamp    float64          `json:"timestamp"`
	ContractData *verdict.Claim   `json:"contract_data"`
	AIVerdict    *verdict.Verdict `json:"ai_verdict"`
	Status       string           `json:"status"`
}

type ReviewQueue interface {
	Enqueue(ctx context.Context, claim *verdict.Claim, v *verdict.Verdict) (*Review, error)
	List(ctx context.Context) ([]*Review, error)
}

// FileReviewQueue stores one json file per review in a directory. Existing files are never overwritten
type FileReviewQueue struct {
	dir string
	mu  sync.Mutex
	log interfaces.ILogger
}

func NewFileReviewQueue(dir string, log interfaces.ILogger) *FileReviewQueue {
	return &FileReviewQueue{dir: dir, log: log}
}

func (q *FileReviewQueue) Enqueue(_ context.Context, claim *verdict.Claim, v *verdict.Verdict) (*Review, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return nil, lib.WrapError(ErrReviewQueue, err)
	}

	id := reviewID(claim.TransactionID)
	if _, err := os.Stat(q.path(id)); err == nil {
		id = id + "_" + uuid.NewString()[:8]
	}

	review := &Review{
		ID:           id,
		Timestamp:    float64(time.Now().UnixMilli()) / 1000,
		ContractData: claim,
		AIVerdict:    v.Clone(),
		Status:       ReviewStatusPending,
	}

	data, err := json.MarshalIndent(review, "", "  ")
	if err != nil {
		return nil, lib.WrapError(ErrReviewQueue, err)
	}
	if err := lib.WriteFileAtomic(q.path(id), data, 0o644); err != nil {
		return nil, lib.WrapError(ErrReviewQueue, err)
	}

	q.log.Infof("review task created: %s", q.path(id))
	return review, nil
}

func (q *FileReviewQueue) List(_ context.Context) ([]*Review, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Review{}, nil
		}
		return nil, lib.WrapError(ErrReviewQueue, err)
	}

	reviews := make([]*Review, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, reviewFilePrefix) || !strings.HasSuffix(name, reviewFileSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(q.dir, name))
		if err != nil {
			return nil, lib.WrapError(ErrReviewQueue, err)
		}
		var review Review
		if err := json.Unmarshal(data, &review); err != nil {
			q.log.Warnf("skipping unreadable review file %s: %s", name, err)
			continue
		}
		reviews = append(reviews, &review)
	}

	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].Timestamp < reviews[j].Timestamp
	})
	return reviews, nil
}

func (q *FileReviewQueue) path(id string) string {
	return filepath.Join(q.dir, id+reviewFileSuffix)
}

func reviewID(txID string) string {
	if txID == "" {
		return reviewFilePrefix + uuid.NewString()
	}
	return reviewFilePrefix + unsafeIDChars.ReplaceAllString(txID, "_")
}
