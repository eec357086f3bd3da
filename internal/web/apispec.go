package web

import "net/http"

const apiVersion = "1.0.0"

type object = map[string]any

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema object) object {
	return object{"application/json": object{"schema": schema}}
}

// uploadBody is the multipart request body shared by the upload routes.
func uploadBody(description string) object {
	return object{
		"required": true,
		"content": object{
			"multipart/form-data": object{
				"schema": object{
					"type":     "object",
					"required": []string{"file"},
					"properties": object{
						"file": object{
							"type":        "string",
							"format":      "binary",
							"description": description,
						},
					},
				},
			},
		},
	}
}

func failureResponses() object {
	failure := func(description string) object {
		return object{"description": description, "content": jsonContent(ref("ErrorResponse"))}
	}
	return object{
		"400": failure("ValidationError: missing, empty, oversized or unsupported upload"),
		"409": failure("ScheduleConflictError: two tables fill one slot differently"),
		"422": failure("ExtractionError, MalformedGridError or ConflictingSpanError"),
		"429": object{"description": "Upload rate limit exceeded"},
		"500": failure("InternalError"),
	}
}

func timetableOperation(summary, description, upload string) object {
	responses := failureResponses()
	responses["200"] = object{
		"description": "Parsed timetable. success is false when the document holds no table.",
		"content":     jsonContent(ref("TimetableResponse")),
	}
	return object{
		"summary":     summary,
		"description": description,
		"tags":        []string{"timetable"},
		"requestBody": uploadBody(upload),
		"responses":   responses,
	}
}

// apiSpec builds the OpenAPI document of the HTTP surface.
func apiSpec() object {
	toCSV := failureResponses()
	toCSV["200"] = object{
		"description": "Every extracted table as CSV, tables separated by a blank line",
		"content":     object{"text/csv": object{"schema": object{"type": "string"}}},
	}

	return object{
		"openapi": "3.0.3",
		"info": object{
			"title":       "Timetable API",
			"description": "Turns timetable grids from PDF, XLSX or CSV documents into structured class schedules.",
			"version":     apiVersion,
		},
		"paths": object{
			"/health": object{
				"get": object{
					"summary": "Liveness check",
					"tags":    []string{"service"},
					"responses": object{
						"200": object{
							"description": "Service is up",
							"content": jsonContent(object{
								"type":       "object",
								"properties": object{"status": object{"type": "string", "example": "ok"}},
							}),
						},
					},
				},
			},
			"/api/timetable/parse": object{
				"post": timetableOperation(
					"Parse a timetable document",
					"Extracts every table of the document and merges them into one schedule per class.",
					"Timetable document (.pdf, .xlsx or .csv)",
				),
			},
			"/api/csv/to-json": object{
				"post": timetableOperation(
					"Parse a CSV timetable",
					"Reads a UTF-8 or GB18030 CSV file as a single table.",
					"Timetable as CSV",
				),
			},
			"/api/pdf/to-csv": object{
				"post": object{
					"summary":     "Export extracted tables as CSV",
					"description": "Runs table extraction only and returns the raw grids.",
					"tags":        []string{"timetable"},
					"requestBody": uploadBody("Timetable document (.pdf, .xlsx or .csv)"),
					"responses":   toCSV,
				},
			},
		},
		"components": object{
			"schemas": schemas(),
		},
	}
}

func schemas() object {
	integer := object{"type": "integer"}
	number := object{"type": "number"}
	str := object{"type": "string"}
	entries := object{"type": "array", "items": ref("PeriodEntry")}

	return object{
		"PeriodEntry": object{
			"type": "object",
			"properties": object{
				"period":           integer,
				"course":           str,
				"teacher":          str,
				"is_class_teacher": object{"type": "boolean"},
			},
		},
		"ClassSchedule": object{
			"type": "object",
			"properties": object{
				"class_name": str,
				"schedule": object{
					"type":     "object",
					"required": []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
					"properties": object{
						"monday":    entries,
						"tuesday":   entries,
						"wednesday": entries,
						"thursday":  entries,
						"friday":    entries,
					},
				},
			},
		},
		"Statistics": object{
			"type": "object",
			"properties": object{
				"total_classes": integer,
				"total_periods": integer,
			},
		},
		"ParsingReport": object{
			"type": "object",
			"properties": object{
				"accuracy":   number,
				"whitespace": number,
				"order":      integer,
				"page":       integer,
			},
		},
		"TimetableResponse": object{
			"type": "object",
			"properties": object{
				"success": object{"type": "boolean"},
				"message": str,
				"data": object{
					"type": "object",
					"properties": object{
						"classes": object{"type": "array", "items": ref("ClassSchedule")},
					},
				},
				"statistics":      ref("Statistics"),
				"parsing_report":  ref("ParsingReport"),
				"parsing_reports": object{"type": "array", "items": ref("ParsingReport")},
			},
		},
		"ErrorResponse": object{
			"type": "object",
			"properties": object{
				"success": object{"type": "boolean", "example": false},
				"message": str,
				"error": object{
					"type": "object",
					"properties": object{
						"kind": object{
							"type": "string",
							"enum": []string{
								"ValidationError", "ExtractionError", "MalformedGridError",
								"ConflictingSpanError", "ScheduleConflictError", "InternalError",
							},
						},
						"stage":  str,
						"region": integer,
						"page":   integer,
					},
				},
			},
		},
	}
}

func (s *Server) handleAPISpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiSpec())
}
