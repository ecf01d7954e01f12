package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveUploader pushes spooled shift videos to a Google Drive folder.
// The gateway that receives raw media drops the bytes into the spool
// directory under the raw media id; Upload picks them up from there.
type DriveUploader struct {
	svc      *drive.Service
	folderID string
	spoolDir string
}

func NewDriveUploader(ctx context.Context, credentialsFile, folderID, spoolDir string) (*DriveUploader, error) {
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}
	return &DriveUploader{svc: svc, folderID: folderID, spoolDir: spoolDir}, nil
}

func NewDriveUploaderFromBase64(ctx context.Context, credentialsBase64, folderID, spoolDir string) (*DriveUploader, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("decode base64 credentials: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}
	return &DriveUploader{svc: svc, folderID: folderID, spoolDir: spoolDir}, nil
}

// Upload moves one spooled video to Drive and returns its web link.
// Fails soft: any error is logged and an empty link returned, so the
// shift record keeps its placeholder reference instead.
func (u *DriveUploader) Upload(ctx context.Context, rawMediaRef, targetName string) string {
	rawID := rawMediaRef
	if i := strings.IndexByte(rawID, '|'); i >= 0 {
		rawID = rawID[:i]
	}

	path := filepath.Join(u.spoolDir, rawID+".mp4")
	f, err := os.Open(path)
	if err != nil {
		log.Printf("❌ Video upload: spool file missing for %s: %v", rawID, err)
		return ""
	}
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(targetName), ".mp4") &&
		!strings.HasSuffix(strings.ToLower(targetName), ".mov") {
		targetName += ".mp4"
	}

	log.Printf("📤 Uploading %s to Drive as %s...", rawID, targetName)

	meta := &drive.File{Name: targetName, Parents: []string{u.folderID}}
	created, err := u.svc.Files.Create(meta).
		Media(f).
		Fields("id", "webViewLink").
		Context(ctx).Do()
	if err != nil {
		log.Printf("❌ Video upload failed for %s: %v", rawID, err)
		return ""
	}

	// Spool file is no longer needed once it is durable
	if err := os.Remove(path); err != nil {
		log.Printf("⚠️  Could not remove spool file %s: %v", path, err)
	}

	log.Printf("✅ Video uploaded: %s", created.WebViewLink)
	return created.WebViewLink
}
