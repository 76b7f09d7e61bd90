package contentx

// Normalize maps a mode-specific raw result onto NormalizedResult. It is a
// total function: nil input and empty lists yield nil fields.
//
// When a list holds several candidates the first one wins; the content API's
// result order is authoritative.
func Normalize(mode QueryMode, raw *RawResult) NormalizedResult {
	if raw == nil {
		return NormalizedResult{}
	}

	if mode == ModeSearch {
		// Trust the shape, not the mode: a cached response for another
		// query definition must not leak experience or page data here.
		if !raw.IsSearchResult() {
			return NormalizedResult{}
		}
		hit, _ := first(raw.Components.Items)
		return NormalizedResult{SearchResult: hit}
	}

	var result NormalizedResult
	if raw.Experiences != nil {
		if exp, ok := first(raw.Experiences.Items); ok {
			result.Experience = &exp
		}
	}
	if raw.Pages != nil {
		if page, ok := first(raw.Pages.Items); ok {
			result.Page = &page
		}
	}
	return result
}

func first[T any](items []T) (T, bool) {
	if len(items) == 0 {
		var zero T
		return zero, false
	}
	return items[0], true
}
