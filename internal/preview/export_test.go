package preview

// Test hooks for the external test package.
var (
	FileName    = fileName
	FilePattern = filePattern
)
