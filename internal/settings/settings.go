package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"pagepreview/internal/services"
)

// OptionName is the options-table key holding the stored overrides.
const OptionName = "page_preview_settings"

// Settings controls which content gets previews and how they are rendered.
type Settings struct {
	PostTypes             []string `json:"post_types" validate:"dive,required,max=64"`
	Crop                  bool     `json:"crop"`
	Zoom                  bool     `json:"zoom"`
	Delay                 int      `json:"delay" validate:"gte=0,lte=60"`
	FeaturedImageFallback bool     `json:"featured_image_fallback"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		PostTypes:             []string{"page"},
		Crop:                  true,
		Zoom:                  true,
		Delay:                 3,
		FeaturedImageFallback: true,
	}
}

// Defaults returns the built-in settings in their stored map form.
func Defaults() map[string]any {
	return Default().Map()
}

// Map returns s in its stored map form.
func (s Settings) Map() map[string]any {
	types := make([]any, 0, len(s.PostTypes))
	for _, t := range s.PostTypes {
		types = append(types, t)
	}
	return map[string]any{
		"post_types":              types,
		"crop":                    s.Crop,
		"zoom":                    s.Zoom,
		"delay":                   s.Delay,
		"featured_image_fallback": s.FeaturedImageFallback,
	}
}

// AllowsType reports whether postType is configured as eligible.
func (s Settings) AllowsType(postType string) bool {
	for _, t := range s.PostTypes {
		if t == postType {
			return true
		}
	}
	return false
}

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		structCheck = validator.New(validator.WithRequiredStructEnabled())
	})
	return structCheck
}

// Validate reports values Sanitize cannot repair.
func (s Settings) Validate() error {
	if err := structValidator().Struct(s); err != nil {
		return services.Wrap(services.ErrValidation, "settings", "validate", err.Error(), nil)
	}
	return nil
}

// Merge returns overrides laid over defaults. Maps are merged key by key and
// lists position by position; any other override value replaces the
// default. Neither argument is modified.
func Merge(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = mergeValue(out[k], v)
	}
	return out
}

func mergeValue(base, override any) any {
	switch o := override.(type) {
	case map[string]any:
		if b, ok := base.(map[string]any); ok {
			return Merge(b, o)
		}
	case []any:
		if b, ok := base.([]any); ok {
			merged := append([]any(nil), b...)
			for i, v := range o {
				if i < len(merged) {
					merged[i] = mergeValue(merged[i], v)
				} else {
					merged = append(merged, v)
				}
			}
			return merged
		}
	}
	return override
}

// Sanitize coerces a loosely typed settings map into Settings. Booleans
// accept truthy values, delay takes the absolute value of any number, and
// post types are trimmed with blanks and duplicates removed. Missing keys
// are left at their zero value.
func Sanitize(raw map[string]any) Settings {
	return Settings{
		PostTypes:             toStrings(raw["post_types"]),
		Crop:                  toBool(raw["crop"]),
		Zoom:                  toBool(raw["zoom"]),
		Delay:                 toAbsInt(raw["delay"]),
		FeaturedImageFallback: toBool(raw["featured_image_fallback"]),
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "0" && s != "false" && s != "off" && s != "no"
	default:
		return false
	}
}

func toAbsInt(v any) int {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	case json.Number:
		f, _ = t.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Abs(math.Trunc(f)))
}

func toStrings(v any) []string {
	var values []string
	switch t := v.(type) {
	case []string:
		values = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
	case string:
		values = strings.Split(t, ",")
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, s := range values {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func decodeStored(value string) (map[string]any, error) {
	if strings.TrimSpace(value) == "" {
		return map[string]any{}, nil
	}
	var stored map[string]any
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		return nil, fmt.Errorf("decode %s: %w", OptionName, err)
	}
	if stored == nil {
		stored = map[string]any{}
	}
	return stored, nil
}
