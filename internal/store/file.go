package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/foundation/utils/filex"
	"github.com/msto63/flatset/internal/flat"
)

// Snapshot file formats, chosen by extension
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// snapshotVersion is written into every file snapshot
const snapshotVersion = 1

// FileStore keeps the collection in a single snapshot file
type FileStore struct {
	path   string
	format string
	logger *mdwlog.Logger
}

// NewFileStore creates a store for path. The format follows the extension:
// .yaml/.yml is YAML, .cbor is CBOR, everything else JSON.
func NewFileStore(path string, logger *mdwlog.Logger) *FileStore {
	if logger == nil {
		logger = mdwlog.NewNop()
	}
	return &FileStore{path: path, format: FormatFor(path), logger: logger}
}

// FormatFor returns the snapshot format used for path
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor":
		return FormatCBOR
	default:
		return FormatJSON
	}
}

// Path returns the snapshot file path
func (s *FileStore) Path() string {
	return s.path
}

// Describe implements Store
func (s *FileStore) Describe() string {
	return "file:" + s.path + " (" + s.format + ")"
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}

// Load implements Store. A missing file is an empty collection.
func (s *FileStore) Load(ctx context.Context) ([]*flat.Flat, error) {
	if !filex.Exists(s.path) {
		s.logger.Info("no snapshot file, starting empty", mdwlog.Fields{"path": s.path})
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, mdwerror.Wrapf(err, "failed to read %s", s.path).WithCode(mdwerror.CodeIOError)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var snap snapshot
	switch s.format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &snap)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &snap)
	default:
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, mdwerror.Wrapf(err, "corrupt snapshot %s", s.path).WithCode(mdwerror.CodeInvalidFormat)
	}

	flats := make([]*flat.Flat, 0, len(snap.Flats))
	for i, dto := range snap.Flats {
		f, err := dto.toFlat()
		if err != nil {
			return nil, mdwerror.Wrapf(err, "snapshot %s, record %d", s.path, i+1)
		}
		flats = append(flats, f)
	}
	s.logger.Debug("snapshot loaded", mdwlog.Fields{"path": s.path, "count": len(flats)})
	return flats, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, flats []*flat.Flat) error {
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Flats:   make([]flatDTO, 0, len(flats)),
	}
	for _, f := range flats {
		snap.Flats = append(snap.Flats, newFlatDTO(f))
	}

	var (
		data []byte
		err  error
	)
	switch s.format {
	case FormatYAML:
		data, err = yaml.Marshal(&snap)
	case FormatCBOR:
		data, err = cbor.Marshal(&snap)
	default:
		data, err = json.MarshalIndent(&snap, "", "  ")
	}
	if err != nil {
		return mdwerror.Wrap(err, "failed to encode snapshot").WithCode(mdwerror.CodeInternal)
	}

	if err := filex.WriteAtomic(s.path, data, 0o644); err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", mdwlog.Fields{"path": s.path, "count": len(flats)})
	return nil
}

type snapshot struct {
	Version int       `json:"version" yaml:"version" cbor:"version"`
	SavedAt string    `json:"savedAt" yaml:"savedAt" cbor:"savedAt"`
	Flats   []flatDTO `json:"flats" yaml:"flats" cbor:"flats"`
}

type coordinatesDTO struct {
	X int `json:"x" yaml:"x" cbor:"x"`
	Y int `json:"y" yaml:"y" cbor:"y"`
}

type houseDTO struct {
	Name                 string `json:"name" yaml:"name" cbor:"name"`
	Year                 int    `json:"year" yaml:"year" cbor:"year"`
	NumberOfFlatsOnFloor int    `json:"numberOfFlatsOnFloor" yaml:"numberOfFlatsOnFloor" cbor:"numberOfFlatsOnFloor"`
}

type flatDTO struct {
	ID                     int64          `json:"id" yaml:"id" cbor:"id"`
	Name                   string         `json:"name" yaml:"name" cbor:"name"`
	Coordinates            coordinatesDTO `json:"coordinates" yaml:"coordinates" cbor:"coordinates"`
	CreationDate           string         `json:"creationDate" yaml:"creationDate" cbor:"creationDate"`
	Area                   int64          `json:"area" yaml:"area" cbor:"area"`
	NumberOfRooms          int64          `json:"numberOfRooms" yaml:"numberOfRooms" cbor:"numberOfRooms"`
	New                    *bool          `json:"new,omitempty" yaml:"new,omitempty" cbor:"new,omitempty"`
	TimeToMetroByTransport float64        `json:"timeToMetroByTransport" yaml:"timeToMetroByTransport" cbor:"timeToMetroByTransport"`
	View                   string         `json:"view" yaml:"view" cbor:"view"`
	House                  *houseDTO      `json:"house,omitempty" yaml:"house,omitempty" cbor:"house,omitempty"`
	OwnerID                *int64         `json:"ownerId,omitempty" yaml:"ownerId,omitempty" cbor:"ownerId,omitempty"`
}

func newFlatDTO(f *flat.Flat) flatDTO {
	f = f.Clone()
	dto := flatDTO{
		ID:                     f.ID,
		Name:                   f.Name,
		Coordinates:            coordinatesDTO{X: f.Coordinates.X, Y: f.Coordinates.Y},
		CreationDate:           f.CreatedAt.Format(time.RFC3339Nano),
		Area:                   f.Area,
		NumberOfRooms:          f.Rooms,
		New:                    f.IsNew,
		TimeToMetroByTransport: f.TransitMinutes,
		View:                   f.View.String(),
		OwnerID:                f.OwnerID,
	}
	if f.House != nil {
		dto.House = &houseDTO{Name: f.House.Name, Year: f.House.Year, NumberOfFlatsOnFloor: f.House.FlatsPerFloor}
	}
	return dto
}

func (d flatDTO) toFlat() (*flat.Flat, error) {
	created, err := time.Parse(time.RFC3339Nano, d.CreationDate)
	if err != nil {
		return nil, mdwerror.Wrapf(err, "invalid creationDate %q", d.CreationDate).WithCode(mdwerror.CodeInvalidFormat)
	}
	view, err := flat.ParseView(d.View)
	if err != nil {
		return nil, err
	}

	f := &flat.Flat{
		ID:             d.ID,
		Name:           d.Name,
		Coordinates:    flat.Coordinates{X: d.Coordinates.X, Y: d.Coordinates.Y},
		CreatedAt:      created,
		Area:           d.Area,
		Rooms:          d.NumberOfRooms,
		IsNew:          d.New,
		TransitMinutes: d.TimeToMetroByTransport,
		View:           view,
		OwnerID:        d.OwnerID,
	}
	if d.House != nil {
		f.House = &flat.House{Name: d.House.Name, Year: d.House.Year, FlatsPerFloor: d.House.NumberOfFlatsOnFloor}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
