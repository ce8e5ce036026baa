package audit

import "strings"

// Labels that introduce the optional context images of a chart audit.
const (
	CalendarLabel          = "CALENDARIO ECONÓMICO:"
	StrategyReferenceLabel = "REFERENCIA ESTRATEGIA:"
	StrategyTextLabel      = "REFERENCIA TEXTO:"
)

// chartInstruction asks for a technical audit and the two machine-readable
// trailer lines decoded by DecodeTrailers.
func chartInstruction(hasCalendar bool) string {
	var b strings.Builder
	b.WriteString("Eres el auditor técnico de \"Smart Trader\". Revisa esta operación con detalle.\n\n")
	b.WriteString("MATERIAL ADJUNTO:\n")
	b.WriteString("- Imagen 1: el gráfico del trade.\n")
	if hasCalendar {
		b.WriteString("- Imagen 2: el calendario económico del día.\n")
	}
	b.WriteString("\nTAREAS:\n")
	b.WriteString("1. Describe el setup técnico: estructura, niveles clave y gestión del riesgo.\n")
	b.WriteString("2. Si hay calendario, valora el riesgo macro de los eventos del día.\n")
	b.WriteString("3. Contrasta la operación con las estrategias de referencia del usuario.\n\n")
	b.WriteString("Termina SIEMPRE con estas dos líneas, sin texto después:\n")
	b.WriteString("[SENTIMENT] LONG: X%, SHORT: Y%\n")
	b.WriteString("[TRADE_PLAN] ENTRY: valor, STOP: valor, TARGET: valor\n\n")
	b.WriteString("Redacta el informe en español usando Markdown.")
	return b.String()
}

// performancePrompt wraps the JSON row summary for the insights request.
func performancePrompt(summaryJSON string) string {
	var b strings.Builder
	b.WriteString("Eres el motor analítico de \"Smart Trader\". Estudia este historial de Interactive Brokers ")
	b.WriteString("y responde en español con una lectura profesional, apoyándote en datos de mercado recientes cuando aporten contexto:\n")
	b.WriteString("1. Qué estrategia rinde mejor y por qué encaja con el mercado actual.\n")
	b.WriteString("2. Qué patrones de riesgo aparecen.\n")
	b.WriteString("3. Recomendaciones concretas para las próximas sesiones.\n\n")
	b.WriteString("DATOS: ")
	b.WriteString(summaryJSON)
	b.WriteString("\n\nUsa Markdown con encabezados claros y cita las fuentes externas que utilices.")
	return b.String()
}
