/*
Package fs emulates a flash filesystem partition on top of a go-billy
filesystem, and wraps its operations to provide a simple and resilient API.

A Flash resolves partition names (as they appear in the partition table) to
raw storage. Mounting a partition reads its superblock, optionally formatting
it when unreadable, then exposes the data region through a *Mount with a
POSIX-like API (list, mkdir, rmdir, read, write, append, rename, delete).

Paths are slash-delimited and absolute, rooted at the mount point (e.g.
"/mydir/hello.txt"). Unlike the underlying billy implementations, operations
never create missing parent directories implicitly: WriteNested is the only
one doing so, explicitly.
*/
package fs
