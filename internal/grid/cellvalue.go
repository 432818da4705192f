// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package grid

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind discriminates the CellValue tagged union. The set is closed:
// adding a new cell value variant means adding one case here and one
// arm to every switch below (the "polymorphic capability set over a
// closed enum" pattern called for in place of dynamic dispatch).
type CellKind uint8

const (
	KindBlank CellKind = iota
	KindText
	KindNumber
	KindLogical
	KindDate
	KindTime
	KindDateTime
	KindDuration
	KindError
	KindImage
	KindHTML
	KindCode
	KindRichText
)

// CodeCellValue is the payload of a KindCode CellValue: the code cell's
// language and source text, not its output (the output lives in the
// DataTable at the same anchor).
type CodeCellValue struct {
	Language Language
	Code     string
}

// Language is the closed set of supported code-cell languages.
type Language string

const (
	LanguageFormula      Language = "Formula"
	LanguagePython       Language = "Python"
	LanguageJavascript   Language = "Javascript"
	LanguageConnection   Language = "Connection"
	LanguageAIResearcher Language = "AIResearcher"
)

// RichTextSpan is one run of a RichText CellValue.
type RichTextSpan struct {
	Text string
	Bold bool
	// additional styling attributes are modeled on the formatting layer,
	// not repeated per-span, to avoid size blowup.
}

// CellValue is Quadratic's tagged union of everything a cell can hold.
// The zero value is KindBlank.
type CellValue struct {
	Kind CellKind

	Text     string
	Number   decimal.Decimal
	Logical  bool
	Time     time.Time // used for Date, Time, and DateTime kinds alike
	Duration time.Duration
	Err      *RunError
	Image    string // opaque handle/URL; rendering is out of scope
	HTML     string
	Code     CodeCellValue
	Rich     []RichTextSpan
}

// Blank is the zero CellValue.
var Blank = CellValue{Kind: KindBlank}

// NewText builds a Text CellValue.
func NewText(s string) CellValue { return CellValue{Kind: KindText, Text: s} }

// NewNumber builds a Number CellValue.
func NewNumber(d decimal.Decimal) CellValue { return CellValue{Kind: KindNumber, Number: d} }

// NewNumberFromInt builds a Number CellValue from an int64.
func NewNumberFromInt(n int64) CellValue {
	return CellValue{Kind: KindNumber, Number: decimal.NewFromInt(n)}
}

// NewLogical builds a Logical CellValue.
func NewLogical(b bool) CellValue { return CellValue{Kind: KindLogical, Logical: b} }

// NewError builds an Error CellValue.
func NewError(err *RunError) CellValue { return CellValue{Kind: KindError, Err: err} }

// NewCode builds a Code CellValue.
func NewCode(lang Language, code string) CellValue {
	return CellValue{Kind: KindCode, Code: CodeCellValue{Language: lang, Code: code}}
}

// IsBlank reports whether v is the Blank variant.
func (v CellValue) IsBlank() bool { return v.Kind == KindBlank }

// IsCode reports whether v holds a code cell body.
func (v CellValue) IsCode() bool { return v.Kind == KindCode }

// IsError reports whether v holds a propagated RunError.
func (v CellValue) IsError() bool { return v.Kind == KindError }

// Equal reports whether two CellValues are the same variant and payload.
func (v CellValue) Equal(o CellValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBlank:
		return true
	case KindText, KindHTML, KindImage:
		return v.Text == o.Text && v.HTML == o.HTML && v.Image == o.Image
	case KindNumber:
		return v.Number.Equal(o.Number)
	case KindLogical:
		return v.Logical == o.Logical
	case KindDate, KindTime, KindDateTime:
		return v.Time.Equal(o.Time)
	case KindDuration:
		return v.Duration == o.Duration
	case KindError:
		return v.Err != nil && o.Err != nil && v.Err.Msg == o.Err.Msg
	case KindCode:
		return v.Code == o.Code
	case KindRichText:
		if len(v.Rich) != len(o.Rich) {
			return false
		}
		for i := range v.Rich {
			if v.Rich[i] != o.Rich[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Less orders two CellValues for sort; Blank collapses to Number(0), per
// the data model's stated ordering rule.
func Less(a, b CellValue) bool {
	an, aok := numericKey(a)
	bn, bok := numericKey(b)
	if aok && bok {
		return an.LessThan(bn)
	}
	if aok != bok {
		// numbers sort before everything else that isn't itself numeric
		return aok
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func numericKey(v CellValue) (decimal.Decimal, bool) {
	switch v.Kind {
	case KindBlank:
		return decimal.Zero, true
	case KindNumber:
		return v.Number, true
	default:
		return decimal.Decimal{}, false
	}
}

func (v CellValue) String() string {
	switch v.Kind {
	case KindBlank:
		return ""
	case KindText:
		return v.Text
	case KindNumber:
		return v.Number.String()
	case KindLogical:
		if v.Logical {
			return "TRUE"
		}
		return "FALSE"
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindTime:
		return v.Time.Format("15:04:05")
	case KindDateTime:
		return v.Time.Format(time.RFC3339)
	case KindDuration:
		return v.Duration.String()
	case KindError:
		return v.Err.Error()
	case KindImage:
		return v.Image
	case KindHTML:
		return v.HTML
	case KindCode:
		return v.Code.Code
	case KindRichText:
		s := ""
		for _, span := range v.Rich {
			s += span.Text
		}
		return s
	}
	return ""
}
