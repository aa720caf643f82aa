package telegram

const (
	startedText        = "The game is on! Type the right text at the right time to score."
	alreadyStartedText = "The game is already running."
	stoppedText        = "The game is stopped. Scores are kept until the next /start."
	alreadyStoppedText = "The game is not running."
	resetText          = "Are you sure you want to reset the leaderboard? Reply <b>yes</b> to confirm."
	noDankTimesText    = "No dank times yet. Add one with /add_time."
	addedText          = "Added dank time <b>%s</b>."
	removedText        = "Removed dank time <b>%s</b>."
	notRemovedText     = "There is no dank time at <b>%s</b>."
	settingUpdatedText = "<b>%s</b> is now <b>%s</b>."
	internalErrorText  = "Something went wrong, please try again later."

	helpText = "<b>Dank time bot</b>\n" +
		"Type a dank time text at its time of day to score points. " +
		"The first one to call a time gets the multiplier, calling twice costs points " +
		"and calling at the wrong time costs points too.\n\n" +
		"/start - start the game\n" +
		"/stop - stop the game\n" +
		"/leaderboard - show the leaderboard\n" +
		"/reset - reset the leaderboard\n" +
		"/dank_times - list the dank times\n" +
		"/add_time HH MM POINTS TEXT... - add a dank time\n" +
		"/remove_time HH MM - remove a dank time\n" +
		"/settings - list the settings\n" +
		"/set NAME VALUE - change a setting\n" +
		"/help - show this message"

	addTimeUsage    = "Usage: /add_time HH MM POINTS TEXT..."
	removeTimeUsage = "Usage: /remove_time HH MM"
	setUsage        = "Usage: /set NAME VALUE"
)
