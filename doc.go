// Package linetrace follows a dark line on a light floor with a
// two-wheeled robot and a single reflectance sensor.
//
// The robot keeps its sensor on the edge of the line: a PID regulator
// turns the reflectance error into a turn rate, sharp curves slow the
// robot down, and a lost line triggers an in-place sweep search.
//
// # Installation
//
//	go install github.com/gwillem/linetrace/cmd/linetrace@latest
//
// # Usage
//
// First, run setup to find the wheel servos and record the sensor range:
//
//	linetrace setup
//
// Then calibrate on the track and follow the line:
//
//	linetrace run
//
// Without hardware, try the controller on a simulated oval:
//
//	linetrace sim --tui
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/linetrace: CLI with setup, sensor, calibrate, tune, run, sim and menu commands
//   - pkg/tracer: Calibration, PID regulator, curve detection, line search and control loop
//   - pkg/robot: Feetech wheel base, ADC reflectance sensor, buttons, panel and configuration
//   - pkg/sim: Simulated robot and tracks
//   - pkg/telemetry: Run recording, summary statistics, plots and MQTT forwarding
package linetrace
