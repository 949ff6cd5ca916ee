package formlogic

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
)

type Kind int

const (
	KindNone Kind = iota
	KindText
	KindNumber
	KindBoolean
	KindTextList
	KindFileList
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindTextList:
		return "textList"
	case KindFileList:
		return "fileList"
	default:
		return "unknown"
	}
}

// FileRef points at an uploaded file; the bytes live with the table provider.
type FileRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Value is a tagged answer or comparand. The zero Value is None.
type Value struct {
	kind  Kind
	text  string
	num   float64
	flag  bool
	texts []string
	files []FileRef
}

func None() Value { return Value{} }

func Text(s string) Value { return Value{kind: KindText, text: s} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

func Bool(b bool) Value { return Value{kind: KindBoolean, flag: b} }

func TextList(items ...string) Value {
	return Value{kind: KindTextList, texts: slices.Clone(items)}
}

func FileList(files ...FileRef) Value {
	return Value{kind: KindFileList, files: slices.Clone(files)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBoolean }

func (v Value) AsTextList() ([]string, bool) {
	if v.kind != KindTextList {
		return nil, false
	}
	return slices.Clone(v.texts), true
}

func (v Value) AsFileList() ([]FileRef, bool) {
	if v.kind != KindFileList {
		return nil, false
	}
	return slices.Clone(v.files), true
}

// IsBlank reports whether the value counts as "not answered": None,
// whitespace-only text or an empty list. Number 0 and false are answers.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindNone:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	case KindTextList:
		return len(v.texts) == 0
	case KindFileList:
		return len(v.files) == 0
	default:
		return false
	}
}

// Equal is strict: kinds must match, no coercion between text and numbers.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindBoolean:
		return v.flag == o.flag
	case KindTextList:
		return slices.Equal(v.texts, o.texts)
	case KindFileList:
		return slices.Equal(v.files, o.files)
	default:
		return false
	}
}

// String renders scalars the way a substring match sees them. Lists and None
// render as "".
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// Interface returns the plain Go form used for JSON and record payloads.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindBoolean:
		return v.flag
	case KindTextList:
		if v.texts == nil {
			return []string{}
		}
		return slices.Clone(v.texts)
	case KindFileList:
		if v.files == nil {
			return []FileRef{}
		}
		return slices.Clone(v.files)
	default:
		return nil
	}
}

func (v Value) clone() Value {
	v.texts = slices.Clone(v.texts)
	v.files = slices.Clone(v.files)
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return nil, errors.New("formlogic: number is not finite")
	}
	return json.Marshal(v.Interface())
}

var errUnsupportedValue = errors.New("formlogic: unsupported value shape")

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = None()
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case 't', 'f':
		var flag bool
		if err := json.Unmarshal(b, &flag); err != nil {
			return err
		}
		*v = Bool(flag)
		return nil
	case '[':
		return v.unmarshalList(b)
	case '{':
		return errUnsupportedValue
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return errUnsupportedValue
		}
		*v = Number(f)
		return nil
	}
}

func (v *Value) unmarshalList(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	if len(items) == 0 {
		*v = TextList()
		return nil
	}

	first := bytes.TrimSpace(items[0])
	if len(first) > 0 && first[0] == '{' {
		var files []FileRef
		if err := json.Unmarshal(b, &files); err != nil {
			return errUnsupportedValue
		}
		for _, f := range files {
			if strings.TrimSpace(f.URL) == "" {
				return errors.New("formlogic: file reference missing url")
			}
		}
		*v = FileList(files...)
		return nil
	}

	var texts []string
	if err := json.Unmarshal(b, &texts); err != nil {
		return errUnsupportedValue
	}
	*v = TextList(texts...)
	return nil
}
