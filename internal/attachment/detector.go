package attachment

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

var extTypes = map[string]core.AttachmentType{
	".pdf":  core.AttachmentPDF,
	".xls":  core.AttachmentExcel,
	".xlsx": core.AttachmentExcel,
	".xlsm": core.AttachmentExcel,
	".doc":  core.AttachmentWord,
	".docx": core.AttachmentWord,
	".jpg":  core.AttachmentImage,
	".jpeg": core.AttachmentImage,
	".png":  core.AttachmentImage,
	".gif":  core.AttachmentImage,
	".bmp":  core.AttachmentImage,
	".tif":  core.AttachmentImage,
	".tiff": core.AttachmentImage,
}

// Detector classifies attachment descriptors into business file types.
type Detector struct {
	logger        *zap.Logger
	minImageBytes int64
}

// NewDetector creates a new Detector. minImageBytes is the size below which
// images count as decorative rather than significant.
func NewDetector(logger *zap.Logger, minImageBytes int64) *Detector {
	return &Detector{
		logger:        logger,
		minImageBytes: minImageBytes,
	}
}

// Classify detects the type and significance of one attachment.
func (d *Detector) Classify(desc core.AttachmentDescriptor) core.AttachmentInfo {
	t := d.detectType(desc)
	return core.AttachmentInfo{
		Descriptor:  desc,
		Type:        t,
		Significant: d.significant(t, desc),
	}
}

// ClassifyAll detects types for every descriptor, preserving order.
func (d *Detector) ClassifyAll(descs []core.AttachmentDescriptor) []core.AttachmentInfo {
	if len(descs) == 0 {
		return nil
	}
	infos := make([]core.AttachmentInfo, 0, len(descs))
	for _, desc := range descs {
		infos = append(infos, d.Classify(desc))
	}
	return infos
}

func (d *Detector) detectType(desc core.AttachmentDescriptor) core.AttachmentType {
	name := strings.ToLower(desc.Filename)

	// Keyword beats extension: SLIP forms circulate under arbitrary names
	// and extensions, and they are the strongest attachment signal.
	if strings.Contains(name, "slip") {
		return core.AttachmentSLIP
	}

	ext := strings.ToLower(desc.Extension)
	if ext == "" {
		ext = filepath.Ext(name)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if t, ok := extTypes[ext]; ok {
		return t
	}

	if t, ok := sniffType(desc.ContentType); ok {
		return t
	}
	return core.AttachmentOther
}

func sniffType(contentType string) (core.AttachmentType, bool) {
	ct := strings.ToLower(contentType)
	switch {
	case ct == "":
		return "", false
	case strings.Contains(ct, "application/pdf"):
		return core.AttachmentPDF, true
	case strings.Contains(ct, "spreadsheet"), strings.Contains(ct, "ms-excel"):
		return core.AttachmentExcel, true
	case strings.Contains(ct, "msword"), strings.Contains(ct, "wordprocessingml"):
		return core.AttachmentWord, true
	case strings.HasPrefix(ct, "image/"):
		return core.AttachmentImage, true
	}
	return "", false
}

// significant flags the types used as classification signals. Small images
// are signatures and logos, not documents.
func (d *Detector) significant(t core.AttachmentType, desc core.AttachmentDescriptor) bool {
	switch t {
	case core.AttachmentSLIP, core.AttachmentPDF:
		return true
	case core.AttachmentImage:
		return desc.Size >= d.minImageBytes
	}
	return false
}
