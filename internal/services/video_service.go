package services

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MediaUploader moves one raw media reference to durable storage.
// Returns the durable link, or "" on any failure.
type MediaUploader interface {
	Upload(ctx context.Context, rawMediaRef, targetName string) string
}

// Upload phases, used in generated file names and link lookups
const (
	PhaseStart = "start"
	PhaseEnd   = "end"
)

// VideoService coordinates asynchronous video uploads. Receipt of a
// video never waits for the upload: the raw reference is stored on the
// shift immediately, the upload runs in the background, and whichever
// log write happens after completion picks the durable link up.
type VideoService struct {
	uploader MediaUploader // nil when durable upload is disabled

	mu    sync.Mutex
	links map[string]string // shiftID|phase -> durable link
}

func NewVideoService(uploader MediaUploader) *VideoService {
	return &VideoService{
		uploader: uploader,
		links:    make(map[string]string),
	}
}

// StartUpload kicks off the background upload for one shift video
func (v *VideoService) StartUpload(shiftID, phase, rawMediaRef, workerName, siteName string) {
	if v.uploader == nil {
		return
	}

	targetName := sanitizeName(workerName) + "_" + sanitizeName(siteName) + "_" +
		phase + "_" + uuid.NewString()[:8] + ".mp4"

	go func() {
		link := v.uploader.Upload(context.Background(), rawMediaRef, targetName)
		if link == "" {
			return
		}

		v.mu.Lock()
		v.links[shiftID+"|"+phase] = link
		v.mu.Unlock()
		log.Printf("🔗 Durable link ready for shift %s (%s)", shiftID, phase)
	}()
}

// Link returns the durable link for a shift video if the upload has
// finished, "" otherwise.
func (v *VideoService) Link(shiftID, phase string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.links[shiftID+"|"+phase]
}

// Forget drops cached links once the shift is fully logged
func (v *VideoService) Forget(shiftID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.links, shiftID+"|"+PhaseStart)
	delete(v.links, shiftID+"|"+PhaseEnd)
}

func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", "|", "-")
	return replacer.Replace(s)
}
