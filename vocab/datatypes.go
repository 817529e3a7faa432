package vocab

// datatypeIRIs maps every built-in CSVW datatype name to its canonical IRI.
// Most names map into the XSD namespace; the exceptions are the CSVW aliases
// json, html, and xml.
var datatypeIRIs = map[string]string{
	"anyAtomicType":      XSDNamespace + "anyAtomicType",
	"anyURI":             XSDNamespace + "anyURI",
	"base64Binary":       XSDNamespace + "base64Binary",
	"boolean":            XSDNamespace + "boolean",
	"byte":               XSDNamespace + "byte",
	"date":               XSDNamespace + "date",
	"dateTime":           XSDNamespace + "dateTime",
	"dateTimeStamp":      XSDNamespace + "dateTimeStamp",
	"dayTimeDuration":    XSDNamespace + "dayTimeDuration",
	"decimal":            XSDNamespace + "decimal",
	"double":             XSDNamespace + "double",
	"duration":           XSDNamespace + "duration",
	"float":              XSDNamespace + "float",
	"gDay":               XSDNamespace + "gDay",
	"gMonth":             XSDNamespace + "gMonth",
	"gMonthDay":          XSDNamespace + "gMonthDay",
	"gYear":              XSDNamespace + "gYear",
	"gYearMonth":         XSDNamespace + "gYearMonth",
	"hexBinary":          XSDNamespace + "hexBinary",
	"int":                XSDNamespace + "int",
	"integer":            XSDNamespace + "integer",
	"language":           XSDNamespace + "language",
	"long":               XSDNamespace + "long",
	"Name":               XSDNamespace + "Name",
	"NCName":             XSDNamespace + "NCName",
	"negativeInteger":    XSDNamespace + "negativeInteger",
	"NMTOKEN":            XSDNamespace + "NMTOKEN",
	"nonNegativeInteger": XSDNamespace + "nonNegativeInteger",
	"nonPositiveInteger": XSDNamespace + "nonPositiveInteger",
	"normalizedString":   XSDNamespace + "normalizedString",
	"positiveInteger":    XSDNamespace + "positiveInteger",
	"QName":              XSDNamespace + "QName",
	"short":              XSDNamespace + "short",
	"string":             XSDNamespace + "string",
	"time":               XSDNamespace + "time",
	"token":              XSDNamespace + "token",
	"unsignedByte":       XSDNamespace + "unsignedByte",
	"unsignedInt":        XSDNamespace + "unsignedInt",
	"unsignedLong":       XSDNamespace + "unsignedLong",
	"unsignedShort":      XSDNamespace + "unsignedShort",
	"yearMonthDuration":  XSDNamespace + "yearMonthDuration",

	// CSVW aliases.
	"number":   XSDNamespace + "double",
	"binary":   XSDNamespace + "base64Binary",
	"datetime": XSDNamespace + "dateTime",
	"any":      XSDNamespace + "anyAtomicType",
	"xml":      RDFNamespace + "XMLLiteral",
	"html":     RDFNamespace + "HTML",
	"json":     CSVWNamespace + "JSON",
}

// datatypeParents encodes the built-in type lattice. A missing entry means
// the type derives directly from anyAtomicType.
var datatypeParents = map[string]string{
	"integer":            "decimal",
	"long":               "integer",
	"int":                "long",
	"short":              "int",
	"byte":               "short",
	"nonNegativeInteger": "integer",
	"positiveInteger":    "nonNegativeInteger",
	"unsignedLong":       "nonNegativeInteger",
	"unsignedInt":        "unsignedLong",
	"unsignedShort":      "unsignedInt",
	"unsignedByte":       "unsignedShort",
	"nonPositiveInteger": "integer",
	"negativeInteger":    "nonPositiveInteger",
	"normalizedString":   "string",
	"token":              "normalizedString",
	"language":           "token",
	"Name":               "token",
	"NMTOKEN":            "token",
	"NCName":             "Name",
	"dateTimeStamp":      "dateTime",
	"dayTimeDuration":    "duration",
	"yearMonthDuration":  "duration",
	"number":             "double",
	"binary":             "base64Binary",
	"datetime":           "dateTime",
}

// unsupportedXSD lists XSD names the processor recognizes but cannot
// represent as cell values.
var unsupportedXSD = map[string]bool{
	"anyType":       true,
	"anySimpleType": true,
	"ENTITIES":      true,
	"IDREFS":        true,
	"NMTOKENS":      true,
	"ENTITY":        true,
	"ID":            true,
	"IDREF":         true,
	"NOTATION":      true,
}

var numericTypes = map[string]bool{
	"decimal":            true,
	"integer":            true,
	"long":               true,
	"int":                true,
	"short":              true,
	"byte":               true,
	"nonNegativeInteger": true,
	"positiveInteger":    true,
	"unsignedLong":       true,
	"unsignedInt":        true,
	"unsignedShort":      true,
	"unsignedByte":       true,
	"nonPositiveInteger": true,
	"negativeInteger":    true,
	"double":             true,
	"float":              true,
	"number":             true,
}

var dateTimeTypes = map[string]bool{
	"date":          true,
	"dateTime":      true,
	"datetime":      true,
	"dateTimeStamp": true,
	"time":          true,
	"gDay":          true,
	"gMonth":        true,
	"gMonthDay":     true,
	"gYear":         true,
	"gYearMonth":    true,
}

var durationTypes = map[string]bool{
	"duration":          true,
	"dayTimeDuration":   true,
	"yearMonthDuration": true,
}

// stringFamily holds the types exempt from control-character replacement
// during cell pre-normalization.
var stringFamily = map[string]bool{
	"string":        true,
	"json":          true,
	"xml":           true,
	"html":          true,
	"anyAtomicType": true,
	"any":           true,
}

// DatatypeIRI returns the canonical IRI for a built-in datatype name.
func DatatypeIRI(name string) (string, bool) {
	iri, ok := datatypeIRIs[name]

	return iri, ok
}

// IsBuiltinDatatype reports whether name is a built-in CSVW datatype.
func IsBuiltinDatatype(name string) bool {
	_, ok := datatypeIRIs[name]

	return ok
}

// DatatypeParent returns the immediate supertype of a built-in datatype,
// or "anyAtomicType" for types that derive from the root directly.
// The root itself has no parent.
func DatatypeParent(name string) (string, bool) {
	if name == "anyAtomicType" || name == "any" {
		return "", false
	}

	if parent, ok := datatypeParents[name]; ok {
		return parent, true
	}

	if _, ok := datatypeIRIs[name]; ok {
		return "anyAtomicType", true
	}

	return "", false
}

// IsSubtype reports whether a is b or derives from b in the built-in
// lattice.
func IsSubtype(a, b string) bool {
	for {
		if a == b {
			return true
		}

		parent, ok := DatatypeParent(a)
		if !ok {
			return false
		}

		a = parent
	}
}

// IsNumericType reports whether the named type parses as a number.
func IsNumericType(name string) bool {
	return numericTypes[name]
}

// IsDateTimeType reports whether the named type is in the date/time family.
func IsDateTimeType(name string) bool {
	return dateTimeTypes[name]
}

// IsDurationType reports whether the named type is a duration.
func IsDurationType(name string) bool {
	return durationTypes[name]
}

// IsBinaryType reports whether the named type carries binary content.
func IsBinaryType(name string) bool {
	return name == "base64Binary" || name == "hexBinary" || name == "binary"
}

// IsStringFamily reports whether the named type is exempt from
// control-character replacement during cell normalization.
func IsStringFamily(name string) bool {
	return stringFamily[name]
}

// RetainsWhitespace reports whether the named type is exempt from
// whitespace collapsing during cell normalization.
func RetainsWhitespace(name string) bool {
	return stringFamily[name] || name == "normalizedString"
}

// IsOrderedType reports whether value-bound facets (minimum, maximum and
// the inclusive/exclusive variants) apply to the named type.
func IsOrderedType(name string) bool {
	return numericTypes[name] || dateTimeTypes[name] || durationTypes[name]
}

// IsUnsupportedXSD reports whether name is an XSD type the processor
// recognizes but cannot produce values for.
func IsUnsupportedXSD(name string) bool {
	return unsupportedXSD[name]
}
