// Package vocab provides the CSVW vocabulary: namespace IRIs, the registry of
// built-in datatype names, and the datatype lattice used for subtype checks.
package vocab

// Namespace IRIs used throughout the processor.
const (
	// CSVWNamespace is the CSVW vocabulary namespace.
	CSVWNamespace = "http://www.w3.org/ns/csvw#"
	// XSDNamespace is the XML Schema datatypes namespace.
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"
	// RDFNamespace is the RDF syntax namespace.
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	// RDFSNamespace is the RDF Schema namespace.
	RDFSNamespace = "http://www.w3.org/2000/01/rdf-schema#"

	// ContextIRI is the retrievable form of the CSVW namespace, accepted as
	// the @context of a metadata document.
	ContextIRI = "http://www.w3.org/ns/csvw"
)

// CSVW returns the IRI for a term in the CSVW namespace.
func CSVW(term string) string {
	return CSVWNamespace + term
}

// XSD returns the IRI for a term in the XSD namespace.
func XSD(term string) string {
	return XSDNamespace + term
}

// RDF returns the IRI for a term in the RDF namespace.
func RDF(term string) string {
	return RDFNamespace + term
}
