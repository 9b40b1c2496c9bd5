package errors

import "fmt"

// ErrPathExist signals a path does (or does not) resolve while the operation
// requires the opposite.
type ErrPathExist struct {
	Path  string
	Exist bool
}

func (err ErrPathExist) Error() string {
	if err.Exist {
		return fmt.Sprintf("%s already exist", err.Path)
	}
	return fmt.Sprintf("%s does not exist", err.Path)
}

// ErrPartitionUnknown signals the partition table holds no entry for a name.
type ErrPartitionUnknown struct {
	Name string
}

func (err ErrPartitionUnknown) Error() string {
	return fmt.Sprintf("partition %s not found in partition table", err.Name)
}
