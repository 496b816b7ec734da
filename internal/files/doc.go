// Package files discovers raw input workbooks and writes output artifacts
// atomically.
//
// Artifacts are written to a temporary file in the destination directory
// and renamed into place:
//
//	err := files.WriteFileAtomic(path, func(w io.Writer) error {
//	    return json.NewEncoder(w).Encode(report)
//	})
package files
