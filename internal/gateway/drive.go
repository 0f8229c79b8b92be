package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveGateway implements the StorageGateway interface against the Google
// Drive v3 API. One gateway wraps one authorized account; folders are Drive
// folder IDs.
type DriveGateway struct {
	svc   *drive.Service
	label string
}

var _ gdsync.StorageGateway = (*DriveGateway)(nil)

// NewDriveGateway wraps an authorized Drive service. label names the
// account in errors and is not sent to the API.
func NewDriveGateway(svc *drive.Service, label string) *DriveGateway {
	return &DriveGateway{svc: svc, label: label}
}

// List returns the immediate, non-trashed children of folder.
func (g *DriveGateway) List(ctx context.Context, folder string) ([]gdsync.Object, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folder))

	var objects []gdsync.Object
	err := g.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, size, mimeType, modifiedTime)").
		PageSize(1000).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				obj, err := toObject(f)
				if err != nil {
					return err
				}
				objects = append(objects, obj)
			}
			return nil
		})
	if err != nil {
		return nil, g.wrap("listing folder", err)
	}
	return objects, nil
}

// Download streams the file's content to w.
func (g *DriveGateway) Download(ctx context.Context, id string, w io.Writer) error {
	resp, err := g.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return g.wrap("downloading file", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading download stream: %w", err)
	}
	return nil
}

// Upload stores content as name inside folder. When a file with that name
// already exists its content and properties are updated in place, keeping
// the file ID stable; otherwise a new file is created.
func (g *DriveGateway) Upload(ctx context.Context, folder string, name string, r io.Reader, size int64, meta map[string]string) (string, error) {
	existing, err := g.findByName(ctx, folder, name)
	if err != nil {
		return "", err
	}

	if existing != "" {
		f, err := g.svc.Files.Update(existing, &drive.File{AppProperties: meta}).
			Media(r).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return "", g.wrap("updating file", err)
		}
		return f.Id, nil
	}

	f, err := g.svc.Files.Create(&drive.File{
		Name:          name,
		Parents:       []string{folder},
		AppProperties: meta,
	}).
		Media(r).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", g.wrap("creating file", err)
	}
	return f.Id, nil
}

// Move reparents a file from one folder to another.
func (g *DriveGateway) Move(ctx context.Context, id string, fromFolder string, toFolder string) error {
	_, err := g.svc.Files.Update(id, nil).
		AddParents(toFolder).
		RemoveParents(fromFolder).
		Fields("id, parents").
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap("moving file", err)
	}
	return nil
}

// EnsureFolder returns the ID of the named child folder of parent, creating
// it when it does not exist yet.
func (g *DriveGateway) EnsureFolder(ctx context.Context, parent string, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(parent), escapeQuery(name), folderMimeType)
	list, err := g.svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", g.wrap("looking up folder", err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	f, err := g.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parent},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", g.wrap("creating folder", err)
	}
	return f.Id, nil
}

// findByName returns the ID of the non-folder file called name directly
// under folder, or "" when there is none.
func (g *DriveGateway) findByName(ctx context.Context, folder string, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType != '%s' and trashed = false",
		escapeQuery(folder), escapeQuery(name), folderMimeType)
	list, err := g.svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", g.wrap("looking up file", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// wrap adds account context and converts credential rejections into
// AuthError so the caller knows retrying is pointless until the account is
// re-authorized.
func (g *DriveGateway) wrap(action string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return &gdsync.AuthError{
			Account: g.label,
			Err:     fmt.Errorf("%s: %w", action, err),
		}
	}
	return fmt.Errorf("%s (%s account): %w", action, g.label, err)
}

func toObject(f *drive.File) (gdsync.Object, error) {
	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		return gdsync.Object{}, fmt.Errorf("parsing modifiedTime of %s: %w", f.Name, err)
	}
	return gdsync.Object{
		ID:         f.Id,
		Name:       f.Name,
		Size:       f.Size,
		MimeType:   f.MimeType,
		ModifiedAt: modified,
		IsFolder:   f.MimeType == folderMimeType,
	}, nil
}

// escapeQuery escapes a literal for embedding in a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
