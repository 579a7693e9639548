package sweep

import (
	"context"
	"sync"
)

// 基于切片的任务分配：把 [0, total) 切成若干段分给 workers 个协程
type executor struct {
	workers int
}

type task struct {
	start int
	end   int
}

func newExecutor(workers int) *executor {
	if workers < 1 {
		workers = 1
	}
	return &executor{workers: workers}
}

// 每个协程平均分到的部分再对半切，余数逐个分配
func (e *executor) split(total int) []task {
	var tasks []task
	taskLen, remainder := total/e.workers, total%e.workers
	start := 0
	if taskLen > 0 {
		half1, half2 := taskLen/2, taskLen/2
		if taskLen%2 == 1 {
			half2++
		}
		for start < total-remainder {
			if half1 != 0 {
				tasks = append(tasks, task{start: start, end: start + half1})
				start += half1
			}
			tasks = append(tasks, task{start: start, end: start + half2})
			start += half2
		}
	}
	for i := 0; i < remainder; i++ {
		tasks = append(tasks, task{start: start, end: start + 1})
		start++
	}
	return tasks
}

// 对每个下标调用 do，遇到第一个错误后停止分配
func (e *executor) run(parent context.Context, total int, do func(i int) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	dispatchChan := make(chan task)
	errChan := make(chan error, e.workers)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range dispatchChan {
				for i := t.start; i < t.end; i++ {
					if ctx.Err() != nil {
						break
					}
					if err := do(i); err != nil {
						errChan <- err
						cancel()
						break
					}
				}
			}
		}()
	}

LOOP:
	for _, t := range e.split(total) {
		select {
		case dispatchChan <- t:
		case <-ctx.Done():
			break LOOP
		}
	}
	close(dispatchChan)
	wg.Wait()

	select {
	case err := <-errChan:
		return err
	default:
	}
	return parent.Err()
}
