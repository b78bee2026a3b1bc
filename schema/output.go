package schema

// Terminal lines may start with one of these markers so transports can style
// them without parsing the text.

// ErrorMarker prefixes lines describing a failure.
const ErrorMarker = "\x1f"

// SuccessMarker prefixes lines carrying program output.
const SuccessMarker = "\x1c"

// InfoMarker prefixes dimmed informational lines.
const InfoMarker = "\x1d"

// HeadingMarker prefixes section headings such as help titles.
const HeadingMarker = "\x1e"

// CodeMarker prefixes pre-highlighted source lines; transports print them as-is.
const CodeMarker = "\x1a"

// MarkerFor returns the terminal marker matching a classification.
func MarkerFor(class Classification) string {
	switch class {
	case ClassSuccess:
		return SuccessMarker
	case ClassError:
		return ErrorMarker
	default:
		return InfoMarker
	}
}

// StripMarker removes a leading marker and reports which one was found.
func StripMarker(line string) (string, string) {
	if line == "" {
		return "", ""
	}
	switch line[:1] {
	case ErrorMarker, SuccessMarker, InfoMarker, HeadingMarker, CodeMarker:
		return line[1:], line[:1]
	default:
		return line, ""
	}
}
