package imaging

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/internal/caption"
	"github.com/stepcanvas/stepcanvas/internal/store"
	"github.com/stepcanvas/stepcanvas/internal/storage"
	"github.com/stepcanvas/stepcanvas/internal/wordgen"
	"github.com/stepcanvas/stepcanvas/pkg/logger"
)

// ImageDoc is one cell of the stepped-image canvas. The image payloads are
// stored as the client sends them (data URLs); OriginalKey points at the
// object-store archive copy when one was made.
type ImageDoc struct {
	store.Base    `bson:",inline"`
	Author        primitive.ObjectID `bson:"author" json:"author"`
	Parent        primitive.ObjectID `bson:"parent" json:"parent"`
	Coordinate    string             `bson:"coordinate" json:"coordinate"`
	Prompt        string             `bson:"prompt" json:"prompt"`
	Type          string             `bson:"type" json:"type"`
	Step          string             `bson:"step" json:"step"`
	OriginalImage string             `bson:"originalImage" json:"originalImage"`
	SteppedImage  string             `bson:"steppedImage" json:"steppedImage"`
	PromptedImage string             `bson:"promptedImage" json:"promptedImage"`
	Caption       string             `bson:"caption" json:"caption"`
	WordList      []string           `bson:"wordList" json:"wordList"`
	OriginalKey   string             `bson:"originalKey,omitempty" json:"originalKey,omitempty"`
}

func (d *ImageDoc) Owner() primitive.ObjectID { return d.Author }

// CreateInput carries the optional create fields; empty strings mean absent.
type CreateInput struct {
	Parent        primitive.ObjectID
	Coordinate    string
	Type          string
	Step          string
	Prompt        string
	OriginalImage string
	SteppedImage  string
	PromptedImage string
}

// UpdatePatch mirrors the mutable fields; nil entries are left untouched.
type UpdatePatch struct {
	Coordinate    any
	Type          any
	Step          any
	Prompt        any
	OriginalImage any
	SteppedImage  any
	PromptedImage any
}

type Service struct {
	images    store.Store[ImageDoc, *ImageDoc]
	captioner caption.Captioner
	completer wordgen.Completer
	objects   storage.ObjectStore // nil when archiving is not configured
}

func NewService(images store.Store[ImageDoc, *ImageDoc], captioner caption.Captioner, completer wordgen.Completer, objects storage.ObjectStore) *Service {
	return &Service{images: images, captioner: captioner, completer: completer, objects: objects}
}

// Create captions the original image (when one was supplied), persists the
// document, then archives the payload. The caption call completes before the
// write starts; with no original image no caption call is attempted and the
// fallback sentinel is stored.
func (s *Service) Create(ctx context.Context, author primitive.ObjectID, in CreateInput) (*ImageDoc, error) {
	capText := caption.Fallback
	if in.OriginalImage != "" && s.captioner != nil {
		if raw, ok := decodeImagePayload(in.OriginalImage); ok {
			capText = s.captioner.Caption(ctx, raw)
		}
	}

	doc := &ImageDoc{
		Author:        author,
		Parent:        in.Parent,
		Coordinate:    in.Coordinate,
		Type:          in.Type,
		Step:          in.Step,
		Prompt:        in.Prompt,
		OriginalImage: in.OriginalImage,
		SteppedImage:  in.SteppedImage,
		PromptedImage: in.PromptedImage,
		Caption:       capText,
		WordList:      []string{},
	}
	id, err := s.images.CreateOne(ctx, doc)
	if err != nil {
		return nil, err
	}

	// best-effort archive; the document is already durable
	if s.objects != nil && in.OriginalImage != "" {
		if raw, ok := decodeImagePayload(in.OriginalImage); ok {
			key := "originals/" + id.Hex()
			if err := s.objects.Put(ctx, key, raw, "image/png"); err != nil {
				logger.Warnf("image archive failed for %s: %v", id.Hex(), err)
			} else if _, err := s.images.PartialUpdateOne(ctx, store.Filter{"_id": id}, store.Filter{"originalKey": key}); err != nil {
				logger.Warnf("image archive key update failed for %s: %v", id.Hex(), err)
			}
		}
	}

	return s.images.ReadOne(ctx, store.Filter{"_id": id})
}

func (s *Service) GetByAuthor(ctx context.Context, author primitive.ObjectID) ([]*ImageDoc, error) {
	return s.images.ReadMany(ctx, store.Filter{"author": author})
}

func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*ImageDoc, error) {
	return store.Exists(ctx, s.images, id)
}

// Update merges the patch into the image, refusing when the id is absent.
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, patch UpdatePatch) error {
	n, err := s.images.PartialUpdateOne(ctx, store.Filter{"_id": id}, store.Filter{
		"coordinate":    patch.Coordinate,
		"type":          patch.Type,
		"step":          patch.Step,
		"prompt":        patch.Prompt,
		"originalImage": patch.OriginalImage,
		"steppedImage":  patch.SteppedImage,
		"promptedImage": patch.PromptedImage,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.NotFound{Collection: s.images.Name(), ID: id.Hex()}
	}
	return nil
}

func (s *Service) DeleteAllByAuthor(ctx context.Context, author primitive.ObjectID) (int64, error) {
	return s.images.DeleteMany(ctx, store.Filter{"author": author})
}

// GenerateSimilarWords delegates to the completion collaborator. Upstream
// failures propagate untouched; there is no fallback word list.
func (s *Service) GenerateSimilarWords(ctx context.Context, prompt string) ([]string, error) {
	return s.completer.GenerateWordList(ctx, prompt)
}

// OriginalURL returns a presigned link to the archived original payload.
func (s *Service) OriginalURL(ctx context.Context, id primitive.ObjectID) (string, error) {
	doc, err := store.Exists(ctx, s.images, id)
	if err != nil {
		return "", err
	}
	if s.objects == nil || doc.OriginalKey == "" {
		return "", &apperr.NotFound{Collection: s.images.Name(), ID: id.Hex() + " archive"}
	}
	url, err := s.objects.PresignedURL(ctx, doc.OriginalKey, 15*time.Minute)
	if err != nil {
		return "", &apperr.Upstream{Service: "object-store", Err: err}
	}
	return url, nil
}

// decodeImagePayload accepts either a bare base64 string or a data URL and
// returns the raw bytes.
func decodeImagePayload(payload string) ([]byte, bool) {
	if i := strings.Index(payload, ","); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
