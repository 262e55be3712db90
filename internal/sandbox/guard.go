package sandbox

import "fmt"

// guardSource is executed by the interpreter in front of the delivered code. It waits
// for a single byte on stdin so the parent can apply resource limits before any user
// code runs, then installs an audit hook that terminates the process on any
// process-spawning or network operation. Filesystem mutations are allowed only when
// every target path resolves inside the private work directory.
//
// argv[1] is a path to the delivered code, or "-" to read it from the rest of stdin.
// argv[2] is the work directory.
var guardSource = fmt.Sprintf(`import os, sys

_MARKER = %q
_EXIT = %d
_BLOCKED = frozenset((
    "os.system", "os.exec", "os.posix_spawn", "os.spawn", "os.fork", "os.forkpty",
    "os.kill", "os.killpg", "subprocess.Popen", "pty.spawn",
    "os.chown", "os.link", "os.symlink", "os.putenv", "os.unsetenv", "shutil.chown",
    "socket.connect", "socket.bind", "socket.sendto", "socket.getaddrinfo", "socket.gethostbyname",
    "ctypes.dlopen", "ctypes.dlsym", "ctypes.cdata",
))
# event -> (path arg index, dir_fd arg index) pairs that must stay in the work dir
_SCOPED = {
    "open": ((0, None),),
    "os.mkdir": ((0, 2),),
    "os.remove": ((0, 1),),
    "os.rmdir": ((0, 1),),
    "os.rename": ((0, 2), (1, 3)),
    "os.truncate": ((0, None),),
    "os.chmod": ((0, 2),),
    "shutil.rmtree": ((0, 1),),
    "shutil.move": ((0, None), (1, None)),
    "shutil.copyfile": ((0, None), (1, None)),
}
_WRITE_FLAGS = os.O_WRONLY | os.O_RDWR | os.O_CREAT | os.O_TRUNC | os.O_APPEND
_WORKDIR = os.path.realpath(sys.argv[2])

def _writes(args):
    mode = args[1] if len(args) > 1 else None
    flags = args[2] if len(args) > 2 else 0
    if isinstance(mode, str) and any(c in mode for c in "wax+"):
        return True
    return isinstance(flags, int) and bool(flags & _WRITE_FLAGS)

def _inside(args, path_idx, fd_idx):
    path = args[path_idx]
    if isinstance(path, int):
        return True
    try:
        path = os.fsdecode(path)
        dir_fd = args[fd_idx] if fd_idx is not None and fd_idx < len(args) else None
        if not os.path.isabs(path) and isinstance(dir_fd, int) and dir_fd >= 0:
            path = os.path.join(os.readlink("/proc/self/fd/%%d" %% dir_fd), path)
        real = os.path.realpath(path)
    except Exception:
        return False
    return real == _WORKDIR or real.startswith(_WORKDIR + os.sep)

def _deny(event):
    os.write(2, ("%%s: %%s\n" %% (_MARKER, event)).encode())
    os._exit(_EXIT)

def _guard(event, args):
    scoped = _SCOPED.get(event)
    if scoped is not None:
        if event == "open" and not _writes(args):
            return
        if not all(_inside(args, p, d) for p, d in scoped):
            _deny(event)
    elif event in _BLOCKED:
        _deny(event)

def _main():
    sys.stdin.buffer.read(1)
    if sys.argv[1] == "-":
        src = sys.stdin.buffer.read()
    else:
        with open(sys.argv[1], "rb") as f:
            src = f.read()
    sys.addaudithook(_guard)
    try:
        code = compile(src, "<delivery>", "exec")
        exec(code, {"__name__": "__main__", "__builtins__": __builtins__})
    except SystemExit:
        raise
    except BaseException as e:
        sys.stderr.write("%%s: %%s\n" %% (type(e).__name__, e))
        sys.stderr.flush()
        sys.exit(1)

_main()
`, violationMarker, violationExitCode)

// startSignal unblocks the guard once limits are in place
var startSignal = []byte{0x01}
