package analysis

// Version is the tool version printed by the -version flag. Release builds
// override it with -ldflags "-X ...analysis.Version=v1.2.3".
var Version = "dev"
