// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command claudecoder suggests repository changes with a prioritized list of
// language models and applies them.
package main

import "github.com/traylinx/claudecoder/internal/cmd"

func main() {
	cmd.Execute()
}
