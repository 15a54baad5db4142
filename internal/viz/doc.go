// Package viz renders simulations in the terminal.
//
//   - [Dashboard]: Bubble Tea program that steps a live session and shows
//     the robot's ground profile, joint table and a trace of one joint
//   - [Canvas]: Braille pixel canvas used for the side view
//   - [PlotJoint], [PlotRoot]: static asciigraph plots of recorded frames
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to spawn
//	A     - Re-anchor on the ground below
//	Tab   - Select next joint
//	Up/K  - Raise selected joint target
//	Down/J - Lower selected joint target
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
