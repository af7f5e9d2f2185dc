package encryption

// Name components of the group encryption namespace.
//
//	<prefix>/READ/<dataType>/E-KEY/<start>/<end>
//	<memberKey>/ENCRYPTED-BY/<prefix>/READ/<dataType>/D-KEY/<start>/<end>
//	<prefix>/SAMPLE/<dataType>/C-KEY/<bucket>/FOR/<eKeyName>
//	<prefix>/SAMPLE/<dataType>/<bucket>/FOR/<cKeyName>
const (
	NameRead        = "READ"
	NameSample      = "SAMPLE"
	NameEKey        = "E-KEY"
	NameDKey        = "D-KEY"
	NameCKey        = "C-KEY"
	NameEncryptedBy = "ENCRYPTED-BY"
	NameFor         = "FOR"
)
