package extraction

import (
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	confidencePaths = []string{"confidence", "confianza", "confidenceScore", "metadata.confidence", "documents.0.confidence", "analyzeResult.documents.0.confidence"}
	readyPaths      = []string{"readyForSubmission", "listoParaVelneo", "ready_for_submission"}
)

// Normalizer resolves raw responses. The zero value logs to slog.Default().
type Normalizer struct {
	Logger *slog.Logger
}

var defaultNormalizer = &Normalizer{}

// Normalize resolves raw with the default normalizer.
func Normalize(raw []byte) Result {
	return defaultNormalizer.Normalize(raw)
}

// Normalize maps a raw document-intelligence response onto a Result. It never
// panics: invalid JSON yields an empty record that still carries the input.
func (n *Normalizer) Normalize(raw []byte) (res Result) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if rv := recover(); rv != nil {
			logger.Error("extraction: normalize panicked", "panic", rv)
			res = Result{Raw: keepRaw(raw)}
		}
	}()

	res.Raw = keepRaw(raw)
	if !gjson.ValidBytes(raw) {
		logger.Debug("extraction: response is not valid JSON", "bytes", len(raw))
		return res
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return res
	}

	res.Sources = make(map[string]string)
	for _, f := range fields {
		if path, ok := resolve(root, f, &res); ok {
			res.Sources[f.name] = path
			logger.Debug("extraction: field resolved", "field", f.name, "path", path)
		}
	}
	if len(res.Sources) == 0 {
		res.Sources = nil
	}

	conf, hasConf := confidence(root)
	res.Confidence = conf

	if v, _, ok := probe(root, readyPaths); ok {
		res.ReadyForSubmission = readBool(v)
	} else {
		res.ReadyForSubmission = len(res.Missing()) == 0 && (!hasConf || conf >= ReadyConfidence)
	}
	return res
}

// resolve walks the field's keys in priority order and, for each key, the
// bags in order. The first value that converts to something non-empty wins.
func resolve(root gjson.Result, f field, res *Result) (string, bool) {
	for _, key := range f.keys {
		for _, bag := range bags {
			path := key
			if bag != "" {
				path = bag + "." + key
			}
			v, ok := scalar(root.Get(path))
			if !ok {
				continue
			}
			if assign(res, f, v) {
				return path, true
			}
		}
	}
	return "", false
}

func probe(root gjson.Result, paths []string) (gjson.Result, string, bool) {
	for _, p := range paths {
		if v, ok := scalar(root.Get(p)); ok {
			return v, p, true
		}
	}
	return gjson.Result{}, "", false
}

// scalar unwraps Azure-style value objects and rejects empty values.
func scalar(v gjson.Result) (gjson.Result, bool) {
	if v.IsObject() {
		for _, k := range unwrapKeys {
			if inner, ok := scalar(v.Get(k)); ok {
				return inner, true
			}
		}
		return gjson.Result{}, false
	}
	switch v.Type {
	case gjson.String:
		if strings.TrimSpace(v.Str) == "" {
			return gjson.Result{}, false
		}
		return v, true
	case gjson.Number, gjson.True, gjson.False:
		return v, true
	default:
		return gjson.Result{}, false
	}
}

// assign converts v per the field kind. It reports false when the value
// converts to the zero value, so a later synonym is not shadowed by garbage.
func assign(res *Result, f field, v gjson.Result) bool {
	text := v.String()
	switch f.kind {
	case kindAmount:
		var x float64
		if v.Type == gjson.Number {
			x = parseNumberLiteral(v.Raw)
		} else {
			x = ParseAmount(text)
		}
		*f.num(res) = x
		return x != 0
	case kindInt:
		var x int
		if v.Type == gjson.Number {
			x = int(math.Round(v.Float()))
		} else {
			x = parseInt(text)
		}
		*f.in(res) = x
		return x != 0
	case kindDate:
		*f.str(res) = NormalizeDate(text)
	case kindEmail:
		*f.str(res) = strings.ToLower(cleanText(text))
	case kindPlate:
		*f.str(res) = cleanPlate(cleanText(text))
	case kindCode:
		*f.str(res) = strings.ToUpper(cleanText(text))
	default:
		*f.str(res) = cleanText(text)
	}
	return *f.str(res) != ""
}

// confidence returns the overall score in [0,1]. Values above 1 are read as
// percentages.
func confidence(root gjson.Result) (float64, bool) {
	v, _, ok := probe(root, confidencePaths)
	if !ok {
		return 0, false
	}
	var c float64
	if v.Type == gjson.Number {
		c = v.Float()
	} else {
		c = ParseAmount(strings.TrimSuffix(strings.TrimSpace(v.String()), "%"))
	}
	if c > 1 {
		c /= 100
	}
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*1000) / 1000, true
}

func readBool(v gjson.Result) bool {
	if v.Type == gjson.String {
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "si", "sí", "yes", "1":
			return true
		}
		return false
	}
	return v.Bool()
}

// keepRaw returns raw when it is valid JSON, otherwise the input as a JSON
// string so Result always marshals.
func keepRaw(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if gjson.ValidBytes(raw) {
		return append(json.RawMessage(nil), raw...)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
