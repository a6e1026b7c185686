// Package alarm contains the core domain types of the alarm console.
//
// It defines the Alarm record mirrored from the alarm service, its Status
// lifecycle and the pure transition function Decide that maps
// (current status, action, actor role) to the next status and the side
// effects the coordinator must perform. Partition and ordering helpers used
// by the registry live here as well so every view sorts alarms the same way.
package alarm
