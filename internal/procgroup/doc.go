// Package procgroup starts and stops child processes as a group, so a
// timeout also stops whatever the child spawned.
package procgroup
