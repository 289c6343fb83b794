// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the small Bubble Tea pieces the editor is built
from.

  - Spinner (spinner.go) - loading indicator shown while a translation runs
  - StatusBar (statusbar.go) - bottom line with mode, target, stream flag,
    model, file and the last error

Both take their colors from the styles package:

	theme := styles.NewTheme("auto")
	bar := components.NewStatusBar(theme)
	bar.SetWidth(80)
	bar.SetError(cfgErr.UserMessage())
	view := bar.View()
*/
package components
