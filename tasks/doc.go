// Package tasks provides ready-made task runners for fractalx modules.
//
// A task runner is built once per module by a fractalx.TaskFactory and
// called for every Task executable with the task's data. Runners that feed
// results back do so through the module API, usually by resolving an
// fractalx.EventData carried in the data.
//
//	m := fractalx.Run(fractalx.ModuleDef{
//		Root: root,
//		Tasks: map[string]fractalx.TaskFactory{
//			"log":   tasks.LogTask(entries),
//			"delay": tasks.Delay(),
//			"fetch": tasks.Throttle(fetch, rate.NewLimiter(5, 1)),
//		},
//	})
package tasks
