package connectors

import "github.com/xeipuuv/gojsonschema"

// reportSchema: ожидаемая форма ответа /api/analytics/kpis.
// Значения KPI не проверяются на наличие: пропуски обрабатывают потребители.
const reportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["report_timestamp", "operational_kpis"],
  "properties": {
    "report_timestamp": {"type": ["string", "number"]},
    "operational_kpis": {
      "type": "object",
      "additionalProperties": {"type": ["number", "null", "string", "boolean"]}
    }
  }
}`

func compileReportSchema() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(reportSchema))
}
