// Package logs reads the daemon and CLI log files for operators.
//
// Last returns the final lines of a file, Follow streams lines appended
// after an offset until its context ends, and Filter narrows either to the
// entries of one content item, component, or minimum level. Follow reopens
// the path on every poll so it keeps up with the pagepreviewd.log link
// moving to a new run's file.
package logs
