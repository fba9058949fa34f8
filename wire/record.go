// Package wire decodes progress signals from their JSON form into typed
// ProgressUpdate values, reporting type errors per field.
//
//	{"event_id": "e-1", "user_address": "0xabc", "badge_id": "traveler",
//	 "update": {"kind": "leveled_tier", "completed_at": 1700000000000, "cumulative_count": 12}}
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"badge-progress-system/engine"
	"badge-progress-system/models"
	"badge-progress-system/utils"

	"github.com/goccy/go-json"
)

// Record is one progress signal addressed to a (user, badge) key.
type Record struct {
	EventID     string                `json:"event_id,omitempty" validate:"max=128"`
	UserAddress string                `json:"user_address" validate:"required,max=64"`
	BadgeID     string                `json:"badge_id" validate:"required,max=128"`
	Update      models.ProgressUpdate `json:"-" validate:"required"`
}

// Key returns the normalized progress key.
func (r Record) Key() models.ProgressKey {
	return models.NewProgressKey(r.UserAddress, r.BadgeID)
}

// Decode parses one JSON record.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Record{}, engine.Malformedf("", "", "record is not valid JSON: %v", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Record{}, engine.Malformedf("", "", "record is not a JSON object")
	}
	return DecodeObject(obj)
}

// DecodeObject builds a Record from an already parsed JSON object. Numbers
// must be json.Number (decoder UseNumber) or integral float64.
func DecodeObject(obj map[string]any) (Record, error) {
	badgeID, _ := obj["badge_id"].(string)
	f := fields{badgeID: strings.TrimSpace(badgeID)}

	var rec Record
	var err error
	if rec.EventID, err = f.optString(obj, "event_id", "event_id"); err != nil {
		return Record{}, err
	}
	if rec.UserAddress, err = f.reqString(obj, "user_address", "user_address"); err != nil {
		return Record{}, err
	}
	if rec.BadgeID, err = f.reqString(obj, "badge_id", "badge_id"); err != nil {
		return Record{}, err
	}
	update, ok := obj["update"].(map[string]any)
	if !ok {
		return Record{}, engine.Malformedf(f.badgeID, "update", "update must be an object")
	}
	if rec.Update, err = f.update(update); err != nil {
		return Record{}, err
	}

	rec.UserAddress = models.NormalizeAddress(rec.UserAddress)
	rec.BadgeID = strings.TrimSpace(rec.BadgeID)
	if err := utils.ValidateStruct(rec); err != nil {
		var verr *utils.ValidationError
		field := ""
		if errors.As(err, &verr) && len(verr.Fields) > 0 {
			field = verr.Fields[0].Field
		}
		return Record{}, engine.Malformedf(f.badgeID, field, "%v", err)
	}
	return rec, nil
}

// fields carries the badge id into every error it reports.
type fields struct {
	badgeID string
}

func (f fields) reqString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", engine.Malformedf(f.badgeID, path, "%s is required", path)
	}
	s, ok := v.(string)
	if !ok {
		return "", engine.Malformedf(f.badgeID, path, "%s must be a string, got %s", path, typeName(v))
	}
	if strings.TrimSpace(s) == "" {
		return "", engine.Malformedf(f.badgeID, path, "%s is empty", path)
	}
	return s, nil
}

func (f fields) optString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", engine.Malformedf(f.badgeID, path, "%s must be a string, got %s", path, typeName(v))
	}
	return strings.TrimSpace(s), nil
}

func (f fields) reqInt(obj map[string]any, key, path string) (int64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, engine.Malformedf(f.badgeID, path, "%s is required", path)
	}
	return f.toInt(v, path)
}

func (f fields) optInt(obj map[string]any, key, path string) (*int64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := f.toInt(v, path)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (f fields) toInt(v any, path string) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, engine.Malformedf(f.badgeID, path, "%s must be an integer, got %s", path, n.String())
		}
		return i, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, engine.Malformedf(f.badgeID, path, "%s must be an integer, got %v", path, n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, engine.Malformedf(f.badgeID, path, "%s must be an integer, got %s", path, typeName(v))
	}
}

func (f fields) update(u map[string]any) (models.ProgressUpdate, error) {
	kind, err := f.reqString(u, "kind", "update.kind")
	if err != nil {
		return nil, err
	}
	completedAt, err := f.reqInt(u, "completed_at", "update.completed_at")
	if err != nil {
		return nil, err
	}

	switch models.UpdateShape(strings.ToLower(strings.TrimSpace(kind))) {
	case models.ShapeUniqueEvent:
		return models.UniqueEventUpdate{CompletedAt: completedAt}, nil

	case models.ShapeProfileProgress:
		desc, err := f.reqString(u, "description", "update.description")
		if err != nil {
			return nil, err
		}
		return models.ProfileProgressUpdate{CompletedAt: completedAt, Description: desc}, nil

	case models.ShapeEquipmentSet:
		raw, ok := u["items"].([]any)
		if !ok {
			return nil, engine.Malformedf(f.badgeID, "update.items", "update.items must be an array of strings")
		}
		items := make([]string, len(raw))
		for i, v := range raw {
			s, ok := v.(string)
			if !ok {
				path := fmt.Sprintf("update.items[%d]", i)
				return nil, engine.Malformedf(f.badgeID, path, "%s must be a string, got %s", path, typeName(v))
			}
			items[i] = s
		}
		return models.EquipmentSetUpdate{CompletedAt: completedAt, Items: items}, nil

	case models.ShapeLeveledTier:
		out := models.LeveledTierUpdate{CompletedAt: completedAt}
		if out.CumulativeCount, err = f.optInt(u, "cumulative_count", "update.cumulative_count"); err != nil {
			return nil, err
		}
		if out.Delta, err = f.optInt(u, "delta", "update.delta"); err != nil {
			return nil, err
		}
		if v, ok := u["tier_completed_at"]; ok && v != nil {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, engine.Malformedf(f.badgeID, "update.tier_completed_at", "update.tier_completed_at must be an object")
			}
			out.TierCompletedAt = make(map[string]int64, len(m))
			for tierID, ts := range m {
				n, err := f.toInt(ts, "update.tier_completed_at."+tierID)
				if err != nil {
					return nil, err
				}
				out.TierCompletedAt[tierID] = n
			}
		}
		return out, nil

	default:
		return nil, engine.Validationf(f.badgeID, "unknown update kind %q", kind)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

type wireUpdate struct {
	Kind            models.UpdateShape `json:"kind"`
	CompletedAt     int64              `json:"completed_at"`
	Description     string             `json:"description,omitempty"`
	Items           []string           `json:"items,omitempty"`
	CumulativeCount *int64             `json:"cumulative_count,omitempty"`
	Delta           *int64             `json:"delta,omitempty"`
	TierCompletedAt map[string]int64   `json:"tier_completed_at,omitempty"`
}

type wireRecord struct {
	EventID     string     `json:"event_id,omitempty"`
	UserAddress string     `json:"user_address"`
	BadgeID     string     `json:"badge_id"`
	Update      wireUpdate `json:"update"`
}

// MarshalJSON writes the wire form Decode reads.
func (r Record) MarshalJSON() ([]byte, error) {
	out := wireRecord{EventID: r.EventID, UserAddress: r.UserAddress, BadgeID: r.BadgeID}
	switch u := r.Update.(type) {
	case models.UniqueEventUpdate:
		out.Update = wireUpdate{Kind: u.Shape(), CompletedAt: u.CompletedAt}
	case models.ProfileProgressUpdate:
		out.Update = wireUpdate{Kind: u.Shape(), CompletedAt: u.CompletedAt, Description: u.Description}
	case models.EquipmentSetUpdate:
		out.Update = wireUpdate{Kind: u.Shape(), CompletedAt: u.CompletedAt, Items: u.Items}
	case models.LeveledTierUpdate:
		out.Update = wireUpdate{
			Kind:            u.Shape(),
			CompletedAt:     u.CompletedAt,
			CumulativeCount: u.CumulativeCount,
			Delta:           u.Delta,
			TierCompletedAt: u.TierCompletedAt,
		}
	default:
		return nil, fmt.Errorf("record %s has no update", r.Key())
	}
	return json.Marshal(out)
}

// UnmarshalJSON lets Record sit inside larger JSON documents.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := Decode(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
