// File: internal/locator/strategies.go
package locator

import "fmt"

// probeMethod selects how the collect script gathers raw matches before the
// shared filters run.
type probeMethod string

const (
	methodCSS        probeMethod = "css"        // querySelectorAll with the given selector
	methodRole       probeMethod = "role"       // exact accessible name (aria-label / associated label)
	methodText       probeMethod = "text"       // exact trimmed text content
	methodTextCI     probeMethod = "text-ci"    // case-insensitive exact text
	methodContains   probeMethod = "contains"   // text containment, last resort
	methodScopedText probeMethod = "text-scope" // exact text, matches outside scope discarded
)

// Strategy is one named, self-contained attempt to find a target element.
// Strategies are stateless and re-evaluated fresh on every resolution call,
// since the live page mutates between calls.
type Strategy struct {
	Name   string
	Method probeMethod
	// Query is the CSS selector (methodCSS) or the label text (other
	// methods). For option targets an empty Query means "use Target.Label".
	Query string
}

func (s Strategy) query(target Target) string {
	if s.Query != "" {
		return s.Query
	}
	return target.Label
}

// attributeSelectors are the structural first-choice selectors per field.
// They track the marketplace's current markup and break first when it ships
// a redesign, which is why every chain carries text fallbacks.
var attributeSelectors = map[TargetKind]string{
	KindTitle:          "input[name='title'], input[data-testid='item-title--input'], #item-title",
	KindDescription:    "textarea[name='description'], textarea[data-testid='item-description--input'], #item-description",
	KindPrice:          "input[name='price'], input[data-testid='item-price--input'], #item-price",
	KindBrand:          "input[name='brand'], input[data-testid='item-brand--input'], #item-brand",
	KindSize:           "[data-testid='item-size--input'], #item-size, input[name='size']",
	KindCondition:      "[data-testid='item-condition--input'], #item-condition",
	KindColor:          "[data-testid='item-color--input'], #item-color, input[name='color']",
	KindPhotoInput:     "input[type='file'][accept*='image'], input[type='file']",
	KindCategoryOpener: "[data-testid='catalog-select-dropdown-input'], input[name='catalog'], #item-catalog",
	KindSubmit:         "button[data-testid='upload-form-save-button'], button[type='submit']",
}

// accessibleNames are the visible labels used by the role strategy.
var accessibleNames = map[TargetKind]string{
	KindTitle:          "Title",
	KindDescription:    "Description",
	KindPrice:          "Price",
	KindBrand:          "Brand",
	KindSize:           "Size",
	KindCondition:      "Condition",
	KindColor:          "Colour",
	KindCategoryOpener: "Category",
	KindSubmit:         "Upload",
}

// chainFor returns the fixed, ordered strategy list for a target. The order
// is intentional: structural attributes are cheapest and most precise,
// accessible names survive markup churn, text matching survives both, and
// containment is the last resort.
func chainFor(target Target) []Strategy {
	if target.Kind == KindOption {
		return []Strategy{
			{Name: "option-exact-text", Method: methodText},
			{Name: "option-text-ci", Method: methodTextCI},
			{Name: "option-scoped-text", Method: methodScopedText},
			{Name: "option-containment", Method: methodContains},
		}
	}

	var chain []Strategy
	if sel, ok := attributeSelectors[target.Kind]; ok {
		chain = append(chain, Strategy{Name: string(target.Kind) + "-attribute", Method: methodCSS, Query: sel})
	}
	if name, ok := accessibleNames[target.Kind]; ok {
		chain = append(chain, Strategy{Name: string(target.Kind) + "-role", Method: methodRole, Query: name})
		chain = append(chain, Strategy{Name: string(target.Kind) + "-label-text", Method: methodTextCI, Query: name})
	}
	return chain
}

// topLevelOptionChain is the distinguished chain for the first taxonomy
// level, whose options are structurally distinct from deeper levels.
func topLevelOptionChain() []Strategy {
	return []Strategy{
		{Name: "root-option-attribute", Method: methodCSS, Query: "[data-testid^='catalog-select-'] [role='button'], [class*='catalog-root'] li"},
		{Name: "option-exact-text", Method: methodText},
		{Name: "option-text-ci", Method: methodTextCI},
		{Name: "option-containment", Method: methodContains},
	}
}

// collectScript builds the probe that gathers candidate elements and reports
// their filter-relevant properties. Matched elements are parked on
// window.__relistCandidates so a follow-up tag call can address the winner by
// index without re-querying a page that may have shifted.
func collectScript(method probeMethod, query string, scope Scope) string {
	return fmt.Sprintf(collectJS, jsString(string(method)), jsString(query), jsString(string(scope)))
}

// tagScript marks the chosen candidate with a unique token attribute and
// scrolls it into view, returning whether the element still existed.
func tagScript(index int, token string) string {
	return fmt.Sprintf(tagJS, index, jsString(token))
}

// tokenSelector addresses a tagged element.
func tokenSelector(token string) string {
	return fmt.Sprintf("[data-relist-target=%q]", token)
}

// jsString encodes a Go string as a JS string literal.
func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}

const collectJS = `(() => {
	const method = %s, query = %s, scopeSel = %s;
	const scope = document.querySelector(scopeSel) || document;
	const norm = t => (t || '').replace(/\s+/g, ' ').trim();

	let nodes = [];
	switch (method) {
	case 'css':
		nodes = Array.from(document.querySelectorAll(query));
		break;
	case 'role': {
		const want = norm(query).toLowerCase();
		nodes = Array.from(document.querySelectorAll('[aria-label], [role]')).filter(el =>
			norm(el.getAttribute('aria-label')).toLowerCase() === want);
		document.querySelectorAll('label').forEach(lb => {
			if (norm(lb.textContent).toLowerCase() === want && lb.htmlFor) {
				const el = document.getElementById(lb.htmlFor);
				if (el) nodes.push(el);
			}
		});
		break;
	}
	case 'text':
	case 'text-ci':
	case 'text-scope':
	case 'contains': {
		const ci = method !== 'text';
		const want = ci ? norm(query).toLowerCase() : norm(query);
		const root = method === 'text-scope' ? scope : document;
		const all = root.querySelectorAll('*');
		for (const el of all) {
			if (el.children.length > 6) continue;
			let text = norm(el.textContent);
			if (ci) text = text.toLowerCase();
			const hit = method === 'contains' ? text.includes(want) && text.length < want.length + 40
				: text === want;
			if (!hit) continue;
			// Keep only the deepest matching element per subtree.
			let deeper = false;
			for (const child of el.children) {
				let ct = norm(child.textContent);
				if (ci) ct = ct.toLowerCase();
				if (method === 'contains' ? ct.includes(want) : ct === want) { deeper = true; break; }
			}
			if (!deeper) nodes.push(el);
		}
		break;
	}
	}

	window.__relistCandidates = nodes;
	return nodes.map((el, i) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const hiddenInput = el.tagName === 'INPUT' && el.type === 'file';
		return {
			index: i,
			visible: hiddenInput || (rect.width > 0 && rect.height > 0 &&
				style.display !== 'none' && style.visibility !== 'hidden' &&
				el.offsetParent !== null),
			link: el.tagName === 'A',
			link_ancestor: !!(el.parentElement && el.parentElement.closest('a')),
			in_scope: scope === document || scope.contains(el),
			disabled: !!el.disabled,
			text: norm(el.textContent).slice(0, 80)
		};
	});
})()`

const tagJS = `(() => {
	const el = (window.__relistCandidates || [])[%d];
	if (!el) return false;
	el.setAttribute('data-relist-target', %s);
	el.scrollIntoView({block: 'center'});
	return true;
})()`
