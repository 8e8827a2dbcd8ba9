package vec

// Vec3 представляет трехмерную координату чанка с целочисленными компонентами.
// Значение неизменяемо: все операции возвращают новый вектор.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Offset возвращает вектор, смещённый на указанные дельты по осям
func (v Vec3) Offset(dx, dy, dz int) Vec3 {
	return Vec3{
		X: v.X + dx,
		Y: v.Y + dy,
		Z: v.Z + dz,
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// ManhattanDistanceTo возвращает манхэттенское расстояние до другого вектора.
// Именно эта метрика определяет затухание уровня запроса между чанками.
func (v Vec3) ManhattanDistanceTo(other Vec3) int {
	return Abs(v.X-other.X) + Abs(v.Y-other.Y) + Abs(v.Z-other.Z)
}

// Abs возвращает модуль целого числа
func Abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
