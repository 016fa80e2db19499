package patterns

import "fmt"

// DefaultVersion labels the built-in rule set.
const DefaultVersion = "builtin-v1"

// Default returns the built-in library. It panics only if the built-in
// rule set itself is broken, which the package tests rule out.
func Default() *Library {
	lib, err := New(DefaultVersion, DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("built-in pattern library is invalid: %v", err))
	}
	return lib
}

// DefaultRules returns the built-in rule set, distilled from the hand-tuned
// production criteria. Subject keywords carry the heaviest weights; body
// phrases, sector identifiers and attachment types corroborate.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "cotizacion-asunto",
			Category: "cotizacion",
			Kind:     KindSubject,
			Pattern:  `\bcotizaci[oó]n(?:es)?\b|\bcot\b`,
			Weight:   30,
		},
		{
			Name:     "cotizacion-cuerpo",
			Category: "cotizacion",
			Kind:     KindBody,
			Pattern:  `solicito su apoyo cotizando|apoyo para cotizar|solicitud de cotizaci[oó]n`,
			Weight:   15,
		},
		{
			Name:     "cotizacion-agente",
			Category: "cotizacion",
			Kind:     KindAgentCode,
			Weight:   20,
		},
		{
			Name:     "cotizacion-slip",
			Category: "cotizacion",
			Kind:     KindAttachment,
			Pattern:  "slip",
			Weight:   15,
		},
		{
			Name:     "renovacion-asunto",
			Category: "renovacion",
			Kind:     KindSubject,
			Pattern:  `\brenovaci[oó]n(?:es)?\b|\brenovar\b|\brehabilitaci[oó]n\b|\bpr[oó]rroga\b|\brv\b|\brenov\b`,
			Weight:   35,
		},
		{
			Name:     "renovacion-cuerpo",
			Category: "renovacion",
			Kind:     KindBody,
			Pattern:  `vigencia pr[oó]xima a vencer|solicito renovaci[oó]n|renovar p[oó]liza|dar continuidad a la p[oó]liza|pr[oó]rroga de la vigencia|rehabilitaci[oó]n de p[oó]liza|continuidad de p[oó]liza`,
			Weight:   15,
		},
		{
			Name:     "renovacion-poliza",
			Category: "renovacion",
			Kind:     KindPolicyNumber,
			Weight:   20,
		},
		{
			Name:     "endoso-asunto",
			Category: "endoso",
			Kind:     KindSubject,
			Pattern:  `\bendosos?\b|\bendosar\b|\bendorsement\b|\binciso \d+|correcci[oó]n de datos?|cambio de cobertura|incremento de suma asegurada|\bot-\d+|\bdocumento \d+`,
			Weight:   35,
		},
		{
			Name:     "endoso-cuerpo",
			Category: "endoso",
			Kind:     KindBody,
			Pattern:  `correcci[oó]n de datos?|modificar inciso|incluir.{0,20}beneficiario|excluir.{0,20}beneficiario|cambiar suma asegurada|actualizaci[oó]n de cobertura|actualizaci[oó]n de beneficios|incorporaci[oó]n de cl[aá]usulas`,
			Weight:   15,
		},
		{
			Name:     "endoso-poliza",
			Category: "endoso",
			Kind:     KindPolicyNumber,
			Weight:   15,
		},
		{
			Name:     "endoso-agente",
			Category: "endoso",
			Kind:     KindAgentCode,
			Weight:   15,
		},
		{
			Name:     "endoso-adjunto",
			Category: "endoso",
			Kind:     KindAttachment,
			Pattern:  TargetSignificant,
			Weight:   15,
		},
	}
}
