package item

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse file-type classification assigned at ingest time.
// It drives the storage location and thumbnail eligibility and is never
// changed after ingest.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindWord  Kind = "word"
	KindExcel Kind = "excel"
	KindPPT   Kind = "ppt"
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindPDF, KindWord, KindExcel, KindPPT, KindText, KindImage, KindOther}

// extensionKinds maps lowercase file extensions to kinds. Anything not
// listed here classifies as KindOther, including legacy .xls binaries.
var extensionKinds = map[string]Kind{
	".pdf": KindPDF,

	".docx": KindWord,
	".doc":  KindWord,

	".xlsx": KindExcel,
	".xlsm": KindExcel,
	".csv":  KindExcel,
	".tsv":  KindExcel,

	".pptx": KindPPT,
	".ppt":  KindPPT,

	".txt":  KindText,
	".md":   KindText,
	".log":  KindText,
	".json": KindText,
	".tex":  KindText,

	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".webp": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tiff": KindImage,
	".tif":  KindImage,
}

// DetectKind classifies a filename by its extension, case-insensitively.
// Unknown extensions (and .xls, deliberately) return KindOther.
func DetectKind(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	if k, ok := extensionKinds[ext]; ok {
		return k
	}
	return KindOther
}

// Label returns a human-readable label for a kind.
func (k Kind) Label() string {
	switch k {
	case KindPDF:
		return "PDF"
	case KindWord:
		return "Word"
	case KindExcel:
		return "Excel"
	case KindPPT:
		return "PowerPoint"
	case KindText:
		return "Text"
	case KindImage:
		return "Image"
	case KindOther:
		return "Other"
	default:
		return string(k)
	}
}

// Valid reports whether k is one of the closed kind enumeration.
func (k Kind) Valid() bool {
	switch k {
	case KindPDF, KindWord, KindExcel, KindPPT, KindText, KindImage, KindOther:
		return true
	}
	return false
}
