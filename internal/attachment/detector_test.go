package attachment

import (
	"testing"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

func TestDetectType(t *testing.T) {
	d := NewDetector(zap.NewNop(), 100*1024)

	tests := []struct {
		name string
		desc core.AttachmentDescriptor
		want core.AttachmentType
	}{
		{"pdf extension", core.AttachmentDescriptor{Filename: "poliza.pdf"}, core.AttachmentPDF},
		{"excel extension", core.AttachmentDescriptor{Filename: "tabla.xlsx"}, core.AttachmentExcel},
		{"word extension", core.AttachmentDescriptor{Filename: "carta.docx"}, core.AttachmentWord},
		{"image extension", core.AttachmentDescriptor{Filename: "firma.png"}, core.AttachmentImage},
		{"uppercase extension", core.AttachmentDescriptor{Filename: "RECIBO.PDF"}, core.AttachmentPDF},
		{"slip keyword beats pdf extension", core.AttachmentDescriptor{Filename: "SLIP_endoso_123.pdf"}, core.AttachmentSLIP},
		{"slip keyword beats excel extension", core.AttachmentDescriptor{Filename: "Slip_Cotizacion.xlsx"}, core.AttachmentSLIP},
		{"declared extension without dot", core.AttachmentDescriptor{Filename: "datos", Extension: "xls"}, core.AttachmentExcel},
		{"content type fallback", core.AttachmentDescriptor{Filename: "adjunto.bin", ContentType: "application/pdf"}, core.AttachmentPDF},
		{"image content type", core.AttachmentDescriptor{Filename: "foto", ContentType: "image/jpeg"}, core.AttachmentImage},
		{"unknown extension", core.AttachmentDescriptor{Filename: "archivo.zip"}, core.AttachmentOther},
		{"no signals at all", core.AttachmentDescriptor{Filename: "sin_nombre"}, core.AttachmentOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Classify(tt.desc)
			if got.Type != tt.want {
				t.Errorf("Classify(%q).Type = %s, want %s", tt.desc.Filename, got.Type, tt.want)
			}
		})
	}
}

func TestSignificance(t *testing.T) {
	d := NewDetector(zap.NewNop(), 100*1024)

	tests := []struct {
		name string
		desc core.AttachmentDescriptor
		want bool
	}{
		{"slip always significant", core.AttachmentDescriptor{Filename: "slip_renovacion.xlsx", Size: 10}, true},
		{"pdf always significant", core.AttachmentDescriptor{Filename: "poliza.pdf", Size: 10}, true},
		{"large image significant", core.AttachmentDescriptor{Filename: "escaneo.jpg", Size: 500 * 1024}, true},
		{"small image decorative", core.AttachmentDescriptor{Filename: "logo.png", Size: 4 * 1024}, false},
		{"excel not significant", core.AttachmentDescriptor{Filename: "tabla.xlsx", Size: 1 << 20}, false},
		{"other not significant", core.AttachmentDescriptor{Filename: "datos.zip", Size: 1 << 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Classify(tt.desc)
			if got.Significant != tt.want {
				t.Errorf("Classify(%q).Significant = %v, want %v", tt.desc.Filename, got.Significant, tt.want)
			}
		})
	}
}

func TestClassifyAllPreservesOrder(t *testing.T) {
	d := NewDetector(zap.NewNop(), 100*1024)

	descs := []core.AttachmentDescriptor{
		{Filename: "slip_auto.xlsx"},
		{Filename: "poliza.pdf"},
	}
	infos := d.ClassifyAll(descs)
	if len(infos) != 2 {
		t.Fatalf("got %d infos, want 2", len(infos))
	}
	if infos[0].Type != core.AttachmentSLIP || infos[1].Type != core.AttachmentPDF {
		t.Errorf("got types %s, %s; want slip, pdf", infos[0].Type, infos[1].Type)
	}

	if got := d.ClassifyAll(nil); got != nil {
		t.Errorf("ClassifyAll(nil) = %v, want nil", got)
	}
}
