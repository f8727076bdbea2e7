package queue

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// SweepJob asks for one sweep at DueAt. Consumers drop it once NotAfter has
// passed.
type SweepJob struct {
	DueAt    time.Time `json:"due_at"`
	NotAfter time.Time `json:"not_after"`
}

func NewSweepJob(at time.Time, expiry time.Duration) SweepJob {
	at = at.UTC()
	return SweepJob{DueAt: at, NotAfter: at.Add(expiry)}
}

func (j SweepJob) Expired(now time.Time) bool {
	return now.After(j.NotAfter)
}

func (j SweepJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func DecodeSweepJob(b []byte) (SweepJob, error) {
	var j SweepJob
	if err := json.Unmarshal(b, &j); err != nil {
		return SweepJob{}, err
	}
	if j.DueAt.IsZero() || j.NotAfter.IsZero() {
		return SweepJob{}, errors.New("sweep job missing due_at or not_after")
	}
	return j, nil
}

// expiration is the per-message TTL, in milliseconds, that holds the job in
// the delay queue until DueAt.
func expiration(dueAt, now time.Time) string {
	ms := dueAt.Sub(now).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms, 10)
}
