// Package aggregates implements the prompt version aggregate on top of gorm.
//
// Every write runs sequencer, demotion and append inside one transaction
// opened by a TxRunner. Uniqueness of (prompt_id, version_number) and of the
// current flag is enforced by indexes; violations surface as CodeConflict.
package aggregates
