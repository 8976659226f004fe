// Package loader reads declarative specification files into records.
//
// Spec files are YAML (.yaml, .yml) or CUE (.cue). Both share one shape:
//
//	specs:
//	  - uri: https://example.org/specs/reverse
//	    given:
//	      - kind: StatementsDataset
//	        text: |
//	          @prefix ex: <https://example.org/> .
//	          ex:sub ex:pred ex:obj .
//	    when:
//	      - kind: TextSparqlSource
//	        text: CONSTRUCT { ?o ?p ?s } WHERE { ?s ?p ?o }
//	    then:
//	      - kind: TableDataset
//	        rows:
//	          - index: 1
//	            bindings: {s: "<https://example.org/sub>"}
//
// kind is a single type tag or a list of them. Binding values are terms in
// N-Triples syntax; bare text is an xsd:string literal. Relative payload
// paths resolve against the spec file's directory.
//
// CUE files are evaluated and exported to JSON before decoding, so they may
// use definitions and defaults to share fragments between specs.
package loader
