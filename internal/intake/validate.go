package intake

import (
	"fmt"
	"strings"

	"weekly-intake/internal/common/validation"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/questions"
	"weekly-intake/internal/store"
)

const emailPattern = `^[^\s@]+@[^\s@]+\.[^\s@]+$`

var identitySchema = validation.MustCompile(fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"fullName": {"type": "string", "minLength": 1},
		"email":    {"type": "string", "minLength": 1, "pattern": %q}
	},
	"required": ["fullName", "email"]
}`, emailPattern))

// answers schemas allow extra keys so demographic fields pass through
var (
	answersSchema2 = answersSchema("question1", "question2")
	answersSchema3 = answersSchema("question1", "question2", "question3")
)

func answersSchema(keys ...string) *validation.Schema {
	props := make([]string, len(keys))
	quoted := make([]string, len(keys))
	for i, k := range keys {
		props[i] = fmt.Sprintf(`%q: {"type": "string", "minLength": 1}`, k)
		quoted[i] = fmt.Sprintf("%q", k)
	}
	return validation.MustCompile(fmt.Sprintf(`{
		"type": "object",
		"properties": {%s},
		"required": [%s],
		"additionalProperties": {"type": "string"}
	}`, strings.Join(props, ","), strings.Join(quoted, ",")))
}

var fieldMessages = map[string]string{
	"fullName":  "Please enter your full name",
	"email":     "Please enter your email address",
	"question1": "Please answer this question",
	"question2": "Please answer this question",
	"question3": "Please answer this question",
}

// Rules are the form constraints that come from configuration.
type Rules struct {
	MaxPhotoBytes int64
	PhotoTypes    []string
	PhotoRequired bool
}

func DefaultRules() Rules {
	return Rules{
		MaxPhotoBytes: 5 * 1024 * 1024,
		PhotoTypes:    []string{"image/jpeg", "image/jpg", "image/png", "image/gif"},
		PhotoRequired: true,
	}
}

// Normalize trims every text field in place.
func (a *Attempt) Normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Email = strings.TrimSpace(a.Email)
	for k, v := range a.Answers {
		a.Answers[k] = strings.TrimSpace(v)
	}
}

// ValidateIdentity checks step 1.
func (r Rules) ValidateIdentity(a Attempt) FieldErrors {
	res := identitySchema.Validate(map[string]interface{}{
		"fullName": strings.TrimSpace(a.FullName),
		"email":    strings.TrimSpace(a.Email),
	})
	return collect(res, func(e validation.ValidationError) string {
		if e.Field == "email" && e.Code == "pattern" {
			return "Please enter a valid email address"
		}
		return ""
	})
}

// ValidatePhoto checks step 2.
func (r Rules) ValidatePhoto(p *photos.Photo) FieldErrors {
	if p == nil || len(p.Data) == 0 {
		if r.PhotoRequired {
			return FieldErrors{"photo": "Please upload a photo"}
		}
		return nil
	}

	if !r.allowedType(p.ContentType) {
		return FieldErrors{"photo": "Please upload a valid image file (JPG, PNG, or GIF)"}
	}
	if r.MaxPhotoBytes > 0 && p.Size() > r.MaxPhotoBytes {
		return FieldErrors{"photo": fmt.Sprintf("File size must be less than %dMB", r.MaxPhotoBytes/(1024*1024))}
	}
	return nil
}

// ValidateAnswers checks step 3. question3 is required only when the active
// set asks it.
func (r Rules) ValidateAnswers(a Attempt, set questions.Set) FieldErrors {
	schema := answersSchema2
	if set.HasQuestion3() {
		schema = answersSchema3
	}

	doc := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		doc[k] = strings.TrimSpace(v)
	}
	return collect(schema.Validate(doc), nil)
}

// Validate checks every step.
func (r Rules) Validate(a Attempt, set questions.Set) FieldErrors {
	out := FieldErrors{}
	for _, fe := range []FieldErrors{
		r.ValidateIdentity(a),
		r.ValidatePhoto(a.Photo),
		r.ValidateAnswers(a, set),
	} {
		for k, v := range fe {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r Rules) allowedType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range r.PhotoTypes {
		if ct == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// collect keeps the first message per field. custom may override the default
// message by returning a non-empty string.
func collect(res *validation.ValidationResult, custom func(validation.ValidationError) string) FieldErrors {
	if res.Valid {
		return nil
	}
	out := FieldErrors{}
	for _, e := range res.Errors {
		if _, seen := out[e.Field]; seen {
			continue
		}
		msg := ""
		if custom != nil {
			msg = custom(e)
		}
		if msg == "" {
			msg = fieldMessages[e.Field]
		}
		if msg == "" {
			msg = e.Message
		}
		out[e.Field] = msg
	}
	return out
}

// answersFrom builds the stored answer map, dropping question3 when the set
// does not ask it.
func answersFrom(a Attempt, set questions.Set) store.Answers {
	out := make(store.Answers, len(a.Answers))
	for k, v := range a.Answers {
		if k == "question3" && !set.HasQuestion3() {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
