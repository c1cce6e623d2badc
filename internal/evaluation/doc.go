// Package evaluation scores translation output against reference corpora and
// compares the result with the published model benchmarks.
//
// Three corpus-level metrics are provided: chrF (character 6-grams, beta 2,
// reported on a 0-1 scale), BLEU (word 4-grams with brevity penalty and
// exponential smoothing, 0-100) and TER (word edits including block shifts
// per reference word, 0-1). Text is NFC-normalized before scoring so that
// composed and decomposed Arabic diacritics compare equal.
package evaluation
