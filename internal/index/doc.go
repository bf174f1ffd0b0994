// Policy notes on two deliberate design choices:
//
// fold_case: required literals are expanded into one probe per case
// permutation of their alphabetic bytes (bounded to the first
// maxFoldCaseLiteralLen bytes of the literal), rather than folding the
// suffix array itself. The suffix array stays strictly byte-sorted;
// only the probe side changes for a case-insensitive query. See
// plan.go's caseVariants.
//
// Trailing newline: not preserved. Every ingested file is represented
// as a sequence of lines each implicitly newline-terminated; whether
// the original bytes ended in '\n' is not recorded anywhere in the
// content handle or the dump format. Callers that need to reproduce
// that distinction must track it themselves alongside the file bytes
// they hand to IndexFile.
package index
