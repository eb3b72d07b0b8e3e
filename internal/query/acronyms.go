package query

// DefaultAcronyms maps common uppercase acronyms found in notes and
// documentation to their expansions (spec §4.5). Unlike the teacher's
// code-vocabulary synonym dictionary (cross-language keyword variants like
// "func"/"def"/"fn"), a notes vault's vocabulary gap is between acronyms and
// their spelled-out forms, not between programming-language synonyms.
var DefaultAcronyms = map[string][]string{
	"API":  {"application programming interface"},
	"CLI":  {"command line interface"},
	"UI":   {"user interface"},
	"UX":   {"user experience"},
	"DB":   {"database"},
	"SQL":  {"structured query language"},
	"ML":   {"machine learning"},
	"AI":   {"artificial intelligence"},
	"NLP":  {"natural language processing"},
	"NN":   {"neural networks"},
	"LLM":  {"large language model"},
	"PKM":  {"personal knowledge management"},
	"TODO": {"to do"},
	"FAQ":  {"frequently asked questions"},
	"ASAP": {"as soon as possible"},
	"ROI":  {"return on investment"},
	"KPI":  {"key performance indicator"},
	"MVP":  {"minimum viable product"},
	"CEO":  {"chief executive officer"},
	"CTO":  {"chief technology officer"},
	"PM":   {"project manager", "product manager"},
	"OKR":  {"objectives and key results"},
	"1:1":  {"one on one"},
	"WIP":  {"work in progress"},
	"RFC":  {"request for comments"},
	"ADR":  {"architecture decision record"},
	"POC":  {"proof of concept"},
	"SAAS": {"software as a service"},
	"SLA":  {"service level agreement"},
	"HR":   {"human resources"},
	"QA":   {"quality assurance"},
	"EOD":  {"end of day"},
	"EOW":  {"end of week"},
	"YTD":  {"year to date"},
	"TBD":  {"to be determined"},
	"FYI":  {"for your information"},
}
