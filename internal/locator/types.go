// File: internal/locator/types.go

// Package locator resolves semantic targets to live page elements through an
// ordered chain of resolution strategies, with visibility and link-safety
// filters applied to every match.
package locator

import (
	"context"
	"fmt"
	"strings"
)

// TargetKind identifies a semantic form field on the listing-creation page.
type TargetKind string

const (
	KindTitle          TargetKind = "title"
	KindDescription    TargetKind = "description"
	KindPrice          TargetKind = "price"
	KindBrand          TargetKind = "brand"
	KindSize           TargetKind = "size"
	KindCondition      TargetKind = "condition"
	KindColor          TargetKind = "color"
	KindPhotoInput     TargetKind = "photo_input"
	KindCategoryOpener TargetKind = "category_opener"
	KindSubmit         TargetKind = "submit"

	// KindOption is a literal option label (taxonomy segments, size values,
	// condition labels). Target.Label carries the text to match.
	KindOption TargetKind = "option"
)

// Target is what the caller wants located: a semantic field, or an exact
// option label.
type Target struct {
	Kind  TargetKind
	Label string
}

func (t Target) String() string {
	if t.Label != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Label)
	}
	return string(t.Kind)
}

// Option builds an option-label target.
func Option(label string) Target {
	return Target{Kind: KindOption, Label: label}
}

// Field builds a semantic field target.
func Field(kind TargetKind) Target {
	return Target{Kind: kind}
}

// Scope restricts element search to a sub-tree of the page, given as a CSS
// selector of the sub-tree root. ScopePage searches the whole document.
type Scope string

const (
	ScopePage       Scope = "body"
	ScopeUploadForm Scope = "form[data-testid='upload-form'], form"
	ScopeCatalog    Scope = "[data-testid='catalog-select'], [class*='catalog']"
)

// Surface is the minimal live-page capability the locator needs. The browser
// package provides the real implementation; tests substitute fakes.
type Surface interface {
	// Eval runs a JavaScript expression and unmarshals its JSON result.
	Eval(ctx context.Context, js string, out any) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	SetFiles(ctx context.Context, selector string, paths []string) error
	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)
}

// Element is a committed resolution result: a stable selector for the chosen
// element and the name of the strategy that found it.
type Element struct {
	Selector string
	Strategy string
}

// NotFoundError reports that every strategy in the chain was exhausted for a
// target. The attempted strategy names feed the publish outcome diagnostic.
type NotFoundError struct {
	Target    Target
	Attempted []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no element found for %s (strategies tried: %s)",
		e.Target, strings.Join(e.Attempted, ", "))
}
