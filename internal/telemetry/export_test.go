package telemetry

// resetInstalled lets tests call Init more than once.
func resetInstalled() {
	installed.Store(false)
}
