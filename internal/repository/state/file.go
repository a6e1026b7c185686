package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/session"
)

// Field names of a persisted item.
const (
	fieldValue     = "value"
	fieldExpiresAt = "expires_at"
)

// FileRepository persists session items to a JSON file on disk.
// JSON is produced and consumed via protojson over a structpb.Struct,
// one nested struct per item.
type FileRepository struct {
	// path is the filesystem location of the session file.
	path string
	// mu protects concurrent access to the session file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the session file does not exist yet.
	ErrNotFound = errors.New("session not found")

	errMalformedItem = errors.New("malformed session item")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the session items from disk.
func (r *FileRepository) Load(_ context.Context) (session.Items, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read session file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}

	return fromProto(&doc)
}

// Save writes the session items to disk, replacing the previous file.
func (r *FileRepository) Save(_ context.Context, items session.Items) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toProto(items)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return nil
}

// fromProto converts the persisted document into session items.
func fromProto(doc *structpb.Struct) (session.Items, error) {
	items := make(session.Items, len(doc.GetFields()))

	for key, value := range doc.GetFields() {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("item %q: %w", key, errMalformedItem)
		}

		expiresAt, err := decodeTime(fields[fieldExpiresAt].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("item %q expiry: %w", key, err)
		}

		items[key] = session.Item{
			Value:     fields[fieldValue].GetStringValue(),
			ExpiresAt: expiresAt,
		}
	}

	return items, nil
}

// toProto converts session items into the persisted document.
func toProto(items session.Items) (*structpb.Struct, error) {
	doc := &structpb.Struct{
		Fields: make(map[string]*structpb.Value, len(items)),
	}

	for key, it := range items {
		expiresAt, err := encodeTime(it.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("item %q expiry: %w", key, err)
		}

		doc.Fields[key] = structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				fieldValue:     structpb.NewStringValue(it.Value),
				fieldExpiresAt: structpb.NewStringValue(expiresAt),
			},
		})
	}

	return doc, nil
}

// encodeTime renders t in the protobuf Timestamp JSON form (RFC 3339, UTC).
func encodeTime(t time.Time) (string, error) {
	raw, err := protojson.Marshal(timestamppb.New(t))
	if err != nil {
		return "", err
	}

	return strconv.Unquote(string(raw))
}

// decodeTime parses the protobuf Timestamp JSON form.
func decodeTime(s string) (time.Time, error) {
	var ts timestamppb.Timestamp
	if err := protojson.Unmarshal([]byte(strconv.Quote(s)), &ts); err != nil {
		return time.Time{}, err
	}

	return ts.AsTime(), nil
}
